package services

import (
	"errors"
	"fmt"
	"strings"
)

// Operation errors surfaced to the mini-app. Validation and conflict
// errors return synchronously; notification failures are logged and
// swallowed, never propagated.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	ErrDeviceConflict = errors.New("device already used by another account")

	ErrInvalidCode      = errors.New("invalid gift code")
	ErrAlreadyClaimed   = errors.New("already claimed this code")
	ErrGiftExpired      = errors.New("gift code expired")
	ErrGiftInactive     = errors.New("code is inactive")
	ErrGiftLimitReached = errors.New("code usage limit reached")
	ErrCodeExists       = errors.New("code already exists")

	ErrWithdrawalsDisabled = errors.New("withdrawals are currently disabled")
	ErrInvalidUPI          = errors.New("invalid UPI format")
	ErrBelowMinimum        = errors.New("amount below minimum withdrawal")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// ChannelsIncompleteError reports which required channels the user has
// not joined yet. Retryable after the user joins them.
type ChannelsIncompleteError struct {
	Missing []string
}

func (e *ChannelsIncompleteError) Error() string {
	return fmt.Sprintf("please join: %s", strings.Join(e.Missing, ", "))
}
