package services_test

import (
	"context"
	"testing"

	"cyberearn-backend/internal/services"
)

func TestRegister(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	notifier := newFakeNotifier()
	users := services.NewUserService(store, settings, notifier, testLogger())

	user, isNew, err := users.Register(context.Background(), "100", "Alice Example", "alice", "FRIEND7")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !isNew {
		t.Error("First registration should report new")
	}
	if len(user.ReferCode) != 7 {
		t.Errorf("Expected 7-char refer code, got %q", user.ReferCode)
	}
	if user.ReferredBy != "FRIEND7" {
		t.Errorf("Referred-by code not recorded: %q", user.ReferredBy)
	}
	if user.Verified {
		t.Error("New user must start unverified")
	}

	// Repeat /start keeps the existing record and the original
	// referred-by code.
	again, isNew, err := users.Register(context.Background(), "100", "Alice Renamed", "alice2", "OTHER77")
	if err != nil {
		t.Fatalf("Repeat register failed: %v", err)
	}
	if isNew {
		t.Error("Repeat registration must not report new")
	}
	if again.ReferCode != user.ReferCode || again.ReferredBy != "FRIEND7" {
		t.Errorf("Existing record must win: %+v", again)
	}

	balance, err := store.GetBalance("100")
	if err != nil {
		t.Fatalf("Failed to get balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("Registration must not pay anything, got %f", balance)
	}
}
