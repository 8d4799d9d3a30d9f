package services

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"cyberearn-backend/internal/models"
)

const leaderboardSize = 20

// LeaderboardService maintains the cached top-N snapshot. The
// snapshot is a read optimization, never authoritative.
type LeaderboardService struct {
	store       *RedisService
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewLeaderboardService(store *RedisService, broadcaster Broadcaster, logger *zap.Logger) *LeaderboardService {
	return &LeaderboardService{store: store, broadcaster: broadcaster, logger: logger}
}

// Refresh rebuilds the snapshot from all user records and persists
// it.
func (l *LeaderboardService) Refresh() (*models.LeaderboardSnapshot, error) {
	ids, err := l.store.ListUserIDs()
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		user, err := l.store.GetUser(id)
		if err != nil {
			continue
		}
		balance, err := l.store.GetBalance(id)
		if err != nil {
			continue
		}
		refers, _ := l.store.ReferredCount(id)

		entries = append(entries, models.LeaderboardEntry{
			UserID:      id,
			Name:        user.Name,
			Balance:     balance,
			TotalRefers: refers,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Balance > entries[j].Balance
	})
	if len(entries) > leaderboardSize {
		entries = entries[:leaderboardSize]
	}

	snap := &models.LeaderboardSnapshot{
		LastUpdated: time.Now().Unix(),
		Data:        entries,
	}
	if err := l.store.SaveLeaderboard(snap); err != nil {
		return nil, err
	}

	l.broadcaster.BroadcastLeaderboardUpdate()
	return snap, nil
}

// Get returns the cached snapshot without rebuilding.
func (l *LeaderboardService) Get() (*models.LeaderboardSnapshot, error) {
	return l.store.GetLeaderboard()
}

// Run refreshes the snapshot on a ticker until stop is closed.
func (l *LeaderboardService) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := l.Refresh(); err != nil {
				l.logger.Warn("leaderboard refresh failed", zap.Error(err))
			}
		case <-stop:
			return
		}
	}
}
