package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cyberearn-backend/internal/models"
	"cyberearn-backend/internal/services"
)

func newGifts(t *testing.T, store *services.RedisService, settings *services.SettingsService) *services.GiftService {
	t.Helper()
	return services.NewGiftService(store, settings, services.NoopBroadcaster{}, testLogger())
}

func activeGift(code string, totalUses int) *models.GiftCode {
	return &models.GiftCode{
		Code:      code,
		MinAmount: 10,
		MaxAmount: 50,
		Expiry:    time.Now().Add(time.Hour).Unix(),
		TotalUses: totalUses,
		IsActive:  true,
		CreatedAt: time.Now().Unix(),
	}
}

func TestClaimGift(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	gifts := newGifts(t, store, settings)

	if err := store.CreateUser(testUser("100")); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := store.SaveGift(activeGift("AB123", 5)); err != nil {
		t.Fatalf("Failed to save gift: %v", err)
	}

	amount, newBalance, err := gifts.Claim(context.Background(), "100", "ab123")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if amount < 10 || amount > 50 {
		t.Errorf("Amount should be within [10, 50], got %f", amount)
	}
	if newBalance != amount {
		t.Errorf("New balance should equal the credited amount, got %f", newBalance)
	}

	history, err := store.UserTransactions("100", 10)
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 1 || history[0].Name != models.TxNameGiftCodeReward {
		t.Errorf("Expected one gift reward entry, got %+v", history)
	}

	if _, _, err := gifts.Claim(context.Background(), "100", "AB123"); !errors.Is(err, services.ErrAlreadyClaimed) {
		t.Errorf("Expected ErrAlreadyClaimed on repeat, got %v", err)
	}
	balance, _ := store.GetBalance("100")
	if balance != newBalance {
		t.Errorf("Repeat claim must not credit again, got %f", balance)
	}
}

func TestClaimGiftErrors(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	gifts := newGifts(t, store, settings)

	if err := store.CreateUser(testUser("110")); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	if _, _, err := gifts.Claim(context.Background(), "missing", "AB123"); !errors.Is(err, services.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}

	if _, _, err := gifts.Claim(context.Background(), "110", "NOPE1"); !errors.Is(err, services.ErrInvalidCode) {
		t.Errorf("Expected ErrInvalidCode, got %v", err)
	}

	expired := activeGift("EXP01", 5)
	expired.Expiry = time.Now().Add(-time.Minute).Unix()
	if err := store.SaveGift(expired); err != nil {
		t.Fatalf("Failed to save gift: %v", err)
	}
	if _, _, err := gifts.Claim(context.Background(), "110", "EXP01"); !errors.Is(err, services.ErrGiftExpired) {
		t.Errorf("Expected ErrGiftExpired, got %v", err)
	}

	inactive := activeGift("OFF01", 5)
	inactive.IsActive = false
	if err := store.SaveGift(inactive); err != nil {
		t.Fatalf("Failed to save gift: %v", err)
	}
	if _, _, err := gifts.Claim(context.Background(), "110", "OFF01"); !errors.Is(err, services.ErrGiftInactive) {
		t.Errorf("Expected ErrGiftInactive, got %v", err)
	}
}

// Two users racing for the last slot of a code: exactly one wins.
func TestClaimGiftConcurrentCap(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	gifts := newGifts(t, store, settings)

	if err := store.CreateUser(testUser("120")); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := store.CreateUser(testUser("121")); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := store.SaveGift(activeGift("LAST1", 1)); err != nil {
		t.Fatalf("Failed to save gift: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, uid := range []string{"120", "121"} {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			_, _, errs[i] = gifts.Claim(context.Background(), uid, "LAST1")
		}(i, uid)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, services.ErrGiftLimitReached) {
			t.Errorf("Loser should see ErrGiftLimitReached, got %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("Exactly one claim should win, got %d", wins)
	}

	used, err := store.GiftUsedBy("LAST1")
	if err != nil {
		t.Fatalf("Failed to read used set: %v", err)
	}
	if len(used) != 1 {
		t.Errorf("Used set must hold exactly one claimant, got %v", used)
	}
}

func TestCreateGift(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	gifts := newGifts(t, store, settings)

	gift, err := gifts.Create(&models.CreateGiftRequest{AutoGenerate: true, MinAmount: 20, MaxAmount: 80, ExpiryHours: 4, TotalUses: 3}, "admin1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(gift.Code) != 5 {
		t.Errorf("Expected 5-char code, got %q", gift.Code)
	}
	if gift.TotalUses != 3 || gift.MinAmount != 20 || gift.MaxAmount != 80 {
		t.Errorf("Gift fields mismatch: %+v", gift)
	}

	if _, err := gifts.Create(&models.CreateGiftRequest{Code: gift.Code}, "admin1"); !errors.Is(err, services.ErrCodeExists) {
		t.Errorf("Expected ErrCodeExists, got %v", err)
	}

	if _, err := gifts.Create(&models.CreateGiftRequest{Code: "toolong"}, "admin1"); !errors.Is(err, services.ErrInvalidCode) {
		t.Errorf("Expected ErrInvalidCode for malformed code, got %v", err)
	}

	// Defaults fill in for an empty request.
	gift, err = gifts.Create(&models.CreateGiftRequest{}, "admin1")
	if err != nil {
		t.Fatalf("Create with defaults failed: %v", err)
	}
	if gift.MinAmount != 10 || gift.MaxAmount != 10 || gift.TotalUses != 1 {
		t.Errorf("Default gift fields mismatch: %+v", gift)
	}
}

func TestToggleAndDeleteGift(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	gifts := newGifts(t, store, settings)

	if err := store.SaveGift(activeGift("TGL01", 1)); err != nil {
		t.Fatalf("Failed to save gift: %v", err)
	}

	if err := gifts.Toggle("TGL01"); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	got, _ := store.GetGift("TGL01")
	if got.IsActive {
		t.Error("Toggle should deactivate the code")
	}

	if err := gifts.Delete("TGL01"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetGift("TGL01"); !errors.Is(err, services.ErrInvalidCode) {
		t.Errorf("Deleted code should be gone, got %v", err)
	}
}
