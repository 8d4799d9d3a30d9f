package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cyberearn-backend/internal/models"
	"cyberearn-backend/internal/services"
)

func newWithdrawals(t *testing.T, store *services.RedisService, settings *services.SettingsService, notifier services.Notifier) *services.WithdrawalService {
	t.Helper()
	if notifier == nil {
		notifier = services.NoopNotifier{}
	}
	return services.NewWithdrawalService(store, settings, notifier, services.NoopBroadcaster{}, testLogger(), "http://localhost:8080")
}

func fundUser(t *testing.T, store *services.RedisService, id string, amount float64) {
	t.Helper()
	if err := store.CreateUser(testUser(id)); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if _, err := store.CreditBalance(id, amount); err != nil {
		t.Fatalf("Failed to fund user: %v", err)
	}
}

func TestWithdrawRequestAndApprove(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	withdrawals := newWithdrawals(t, store, settings, nil)

	fundUser(t, store, "100", 500)

	tx, newBalance, err := withdrawals.Request(context.Background(), "100", 200, "someone@upi")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if tx.Status != models.StatusTxPending {
		t.Errorf("Expected pending status, got %s", tx.Status)
	}
	if newBalance != 300 {
		t.Errorf("Expected balance 300 after debit, got %f", newBalance)
	}

	pending, err := store.PendingWithdrawals()
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].TxID != tx.TxID {
		t.Errorf("Expected the request in the pending queue, got %+v", pending)
	}

	resolved, err := withdrawals.Resolve(context.Background(), tx.TxID, models.StatusTxCompleted, "UTR777")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Status != models.StatusTxCompleted || resolved.UTR != "UTR777" {
		t.Errorf("Resolution mismatch: %+v", resolved)
	}

	balance, _ := store.GetBalance("100")
	if balance != 300 {
		t.Errorf("Approval must not touch the balance, got %f", balance)
	}

	pending, _ = store.PendingWithdrawals()
	if len(pending) != 0 {
		t.Errorf("Pending queue should be empty, got %+v", pending)
	}
}

func TestWithdrawRejectRefundsOnce(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	notifier := newFakeNotifier()
	withdrawals := newWithdrawals(t, store, settings, notifier)

	fundUser(t, store, "110", 500)

	tx, _, err := withdrawals.Request(context.Background(), "110", 200, "someone@upi")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if _, err := withdrawals.Resolve(context.Background(), tx.TxID, models.StatusTxRejected, ""); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	balance, _ := store.GetBalance("110")
	if balance != 500 {
		t.Errorf("Rejection should refund, expected 500 got %f", balance)
	}

	// Second resolution of the same record is a no-op; the refund
	// must not happen twice.
	resolved, err := withdrawals.Resolve(context.Background(), tx.TxID, models.StatusTxRejected, "")
	if err != nil {
		t.Fatalf("Repeat resolve failed: %v", err)
	}
	if resolved.Status != models.StatusTxRejected {
		t.Errorf("Expected rejected status, got %s", resolved.Status)
	}
	balance, _ = store.GetBalance("110")
	if balance != 500 {
		t.Errorf("Repeat resolution must not refund again, got %f", balance)
	}
}

func TestWithdrawValidation(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	withdrawals := newWithdrawals(t, store, settings, nil)

	fundUser(t, store, "120", 500)

	if _, _, err := withdrawals.Request(context.Background(), "120", 200, "bad-upi"); !errors.Is(err, services.ErrInvalidUPI) {
		t.Errorf("Expected ErrInvalidUPI, got %v", err)
	}

	if _, _, err := withdrawals.Request(context.Background(), "120", 50, "someone@upi"); !errors.Is(err, services.ErrBelowMinimum) {
		t.Errorf("Expected ErrBelowMinimum, got %v", err)
	}

	if _, _, err := withdrawals.Request(context.Background(), "120", 600, "someone@upi"); !errors.Is(err, services.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}

	// A zero minimum must not open the door for non-positive amounts;
	// a negative debit would credit the account.
	if err := settings.Update(func(s *models.Settings) { s.MinWithdrawal = 0 }); err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}
	if _, _, err := withdrawals.Request(context.Background(), "120", -200, "someone@upi"); !errors.Is(err, services.ErrBelowMinimum) {
		t.Errorf("Expected ErrBelowMinimum for negative amount, got %v", err)
	}
	if _, _, err := withdrawals.Request(context.Background(), "120", 0, "someone@upi"); !errors.Is(err, services.ErrBelowMinimum) {
		t.Errorf("Expected ErrBelowMinimum for zero amount, got %v", err)
	}

	balance, _ := store.GetBalance("120")
	if balance != 500 {
		t.Errorf("Failed requests must not touch the balance, got %f", balance)
	}

	if err := settings.Update(func(s *models.Settings) { s.WithdrawDisabled = true }); err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}
	if _, _, err := withdrawals.Request(context.Background(), "120", 200, "someone@upi"); !errors.Is(err, services.ErrWithdrawalsDisabled) {
		t.Errorf("Expected ErrWithdrawalsDisabled, got %v", err)
	}

	if _, _, err := withdrawals.Request(context.Background(), "missing", 200, "someone@upi"); !errors.Is(err, services.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestWithdrawAuto(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	withdrawals := newWithdrawals(t, store, settings, nil)

	if err := settings.Update(func(s *models.Settings) { s.AutoWithdraw = true }); err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}

	fundUser(t, store, "130", 500)

	tx, newBalance, err := withdrawals.Request(context.Background(), "130", 150, "someone@upi")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if tx.Status != models.StatusTxCompleted {
		t.Errorf("Auto withdrawal should complete immediately, got %s", tx.Status)
	}
	if !strings.HasPrefix(tx.UTR, "AUTO-") {
		t.Errorf("Expected AUTO- payment reference, got %q", tx.UTR)
	}
	if newBalance != 350 {
		t.Errorf("Expected balance 350, got %f", newBalance)
	}

	pending, _ := store.PendingWithdrawals()
	if len(pending) != 0 {
		t.Errorf("Auto withdrawal must not enter the pending queue, got %+v", pending)
	}
}

func TestResolveInvalidDecision(t *testing.T) {
	store := setupTestRedis(t)
	settings := newTestSettings(t, store)
	withdrawals := newWithdrawals(t, store, settings, nil)

	if _, err := withdrawals.Resolve(context.Background(), "XXXXX", "maybe", ""); err == nil {
		t.Error("Expected error for invalid decision")
	}

	if _, err := withdrawals.Resolve(context.Background(), "XXXXX", models.StatusTxCompleted, ""); !errors.Is(err, services.ErrTransactionNotFound) {
		t.Errorf("Expected ErrTransactionNotFound, got %v", err)
	}
}
