package models

import "time"

type GiftCode struct {
	Code      string  `json:"code" redis:"code"`
	MinAmount float64 `json:"min_amount" redis:"min_amount"`
	MaxAmount float64 `json:"max_amount" redis:"max_amount"`
	Expiry    int64   `json:"expiry" redis:"expiry"`
	TotalUses int     `json:"total_uses" redis:"total_uses"`
	IsActive  bool    `json:"is_active" redis:"is_active"`
	Expired   bool    `json:"expired" redis:"expired"`
	CreatedAt int64   `json:"created_at" redis:"created_at"`
	CreatedBy string  `json:"created_by,omitempty" redis:"created_by"`

	// UsedCount mirrors the size of the code's used-by set; it is
	// filled in on read, the set itself is authoritative.
	UsedCount int `json:"used_count" redis:"used_count"`
}

// ExpiredNow recomputes the derived expired flag. Once a code has hit
// its expiry or usage cap it stays unusable even if reactivated.
func (g *GiftCode) ExpiredNow(now time.Time) bool {
	if g.Expired {
		return true
	}
	if g.Expiry > 0 && now.Unix() > g.Expiry {
		return true
	}
	if g.TotalUses > 0 && g.UsedCount >= g.TotalUses {
		return true
	}
	return false
}

// RemainingMinutes is an admin-panel annotation.
func (g *GiftCode) RemainingMinutes(now time.Time) int {
	if g.Expiry == 0 {
		return 0
	}
	remaining := int(time.Unix(g.Expiry, 0).Sub(now).Minutes())
	if remaining < 0 {
		return 0
	}
	return remaining
}
