package services

// Broadcaster pushes live updates to connected mini-app clients.
// Implemented by the websocket hub; a no-op stands in when nobody is
// listening.
type Broadcaster interface {
	BroadcastBalanceUpdate(userID string, balance float64)
	BroadcastLeaderboardUpdate()
}

type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastBalanceUpdate(userID string, balance float64) {}
func (NoopBroadcaster) BroadcastLeaderboardUpdate()                           {}
