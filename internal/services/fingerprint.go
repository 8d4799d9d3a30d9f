package services

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Fingerprint derives a stable device hash from the client IP, the
// User-Agent header and the browser-supplied nonce. It is only ever
// used as an opaque comparison key; stability matters, cryptographic
// strength does not.
func Fingerprint(ip, userAgent, nonce string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%s", ip, userAgent, nonce)))
	return hex.EncodeToString(sum[:])
}
