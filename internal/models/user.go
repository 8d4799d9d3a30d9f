package models

import "time"

type User struct {
	ID       string `json:"user_id" redis:"user_id"`
	Name     string `json:"name" redis:"name"`
	Username string `json:"username,omitempty" redis:"username"`

	Verified       bool   `json:"verified" redis:"verified"`
	DeviceVerified bool   `json:"device_verified" redis:"device_verified"`
	DeviceID       string `json:"device_id,omitempty" redis:"device_id"`
	IP             string `json:"ip,omitempty" redis:"ip"`

	ReferCode  string `json:"refer_code" redis:"refer_code"`
	ReferredBy string `json:"referred_by,omitempty" redis:"referred_by"`

	LastChannelCheck int64 `json:"last_channel_check,omitempty" redis:"last_channel_check"`
	JoinedDate       int64 `json:"joined_date" redis:"joined_date"`
}

// UserStatus is the derived display status, never persisted.
// A verified user degrades back to "pending" when the channel check
// has gone stale; the paid bonus is never reversed.
type UserStatus string

const (
	StatusVerified UserStatus = "verified"
	StatusPending  UserStatus = "pending"
)

// ChannelCheckWindow is how long a successful channel-membership check
// keeps the display status at "verified".
const ChannelCheckWindow = 5 * time.Minute
