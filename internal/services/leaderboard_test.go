package services_test

import (
	"testing"

	"cyberearn-backend/internal/services"
)

func TestLeaderboardRefresh(t *testing.T) {
	store := setupTestRedis(t)
	leaderboard := services.NewLeaderboardService(store, services.NoopBroadcaster{}, testLogger())

	for _, u := range []struct {
		id      string
		balance float64
	}{
		{"1", 30}, {"2", 120}, {"3", 70},
	} {
		if err := store.CreateUser(testUser(u.id)); err != nil {
			t.Fatalf("Failed to create user: %v", err)
		}
		if _, err := store.CreditBalance(u.id, u.balance); err != nil {
			t.Fatalf("Failed to fund user: %v", err)
		}
	}
	if _, err := store.AddReferredUser("2", "1"); err != nil {
		t.Fatalf("Failed to add referred user: %v", err)
	}

	snap, err := leaderboard.Refresh()
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if len(snap.Data) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(snap.Data))
	}
	if snap.Data[0].UserID != "2" || snap.Data[1].UserID != "3" || snap.Data[2].UserID != "1" {
		t.Errorf("Entries not sorted by balance: %+v", snap.Data)
	}
	if snap.Data[0].TotalRefers != 1 {
		t.Errorf("Expected top entry with 1 refer, got %d", snap.Data[0].TotalRefers)
	}

	cached, err := leaderboard.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cached.LastUpdated != snap.LastUpdated || len(cached.Data) != 3 {
		t.Errorf("Cached snapshot mismatch: %+v", cached)
	}
}
