package models

type LeaderboardEntry struct {
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	Balance     float64 `json:"balance"`
	TotalRefers int     `json:"total_refers"`
}

type LeaderboardSnapshot struct {
	LastUpdated int64              `json:"last_updated"`
	Data        []LeaderboardEntry `json:"data"`
}
