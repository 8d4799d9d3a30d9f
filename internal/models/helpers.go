package models

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCode(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// GenerateReferCode returns a 7-char uppercase alphanumeric code.
// Uniqueness is enforced by the store, not here.
func GenerateReferCode() string {
	return randomCode(7)
}

// GenerateGiftCode returns a 5-char uppercase alphanumeric code.
func GenerateGiftCode() string {
	return randomCode(5)
}

// GenerateTxID returns a short human-readable transaction id with an
// optional prefix ("GIFT", "REF-VERIFY", ...).
func GenerateTxID(prefix string) string {
	if prefix == "" {
		return randomCode(5)
	}
	return fmt.Sprintf("%s-%s", prefix, randomCode(5))
}

// GenerateSessionID returns an opaque id for mini-app sessions.
func GenerateSessionID() string {
	return uuid.NewString()
}

// RandomReward draws a uniform amount in [min, max] rounded to 2
// decimals. Degenerate ranges (min >= max) return min.
func RandomReward(min, max float64) float64 {
	if min >= max {
		return Round2(min)
	}
	return Round2(min + rand.Float64()*(max-min))
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var upiPattern = regexp.MustCompile(`^[\w.\-]{2,}@\w{2,}$`)

// ValidUPI reports whether the destination looks like a UPI address
// (local-part@handle, at least 2 chars each side).
func ValidUPI(upi string) bool {
	return upiPattern.MatchString(upi)
}

// CodeIsWellFormed checks an admin-supplied gift code: exactly 5
// alphanumeric characters.
func CodeIsWellFormed(code string) bool {
	if len(code) != 5 {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// FormatDate renders ledger timestamps the way the mini-app shows
// them.
func FormatDate(ts int64) string {
	return time.Unix(ts, 0).Format("2006-01-02 15:04")
}
