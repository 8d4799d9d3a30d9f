package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cyberearn-backend/internal/models"
	"cyberearn-backend/internal/services"
)

func setupTestRedis(t *testing.T) *services.RedisService {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return services.NewRedisServiceWithClient(client)
}

func testUser(id string) *models.User {
	return &models.User{
		ID:         id,
		Name:       "Test User " + id,
		Username:   "user" + id,
		ReferCode:  "REF" + id,
		JoinedDate: time.Now().Unix(),
	}
}

// fakeNotifier records outbound messages so tests can assert on
// notification side effects without a real bot.
type fakeNotifier struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{messages: make(map[string][]string)}
}

func (f *fakeNotifier) SendMessage(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[chatID] = append(f.messages[chatID], text)
	return nil
}

func (f *fakeNotifier) count(chatID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[chatID])
}

// fakeChannelChecker answers membership checks from a fixed map.
type fakeChannelChecker struct {
	mu     sync.Mutex
	member map[string]bool
	err    error
}

func (f *fakeChannelChecker) IsChatMember(_ context.Context, channelID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.member[channelID], nil
}

func (f *fakeChannelChecker) setMember(channelID string, joined bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.member == nil {
		f.member = make(map[string]bool)
	}
	f.member[channelID] = joined
}

func newTestSettings(t *testing.T, store *services.RedisService) *services.SettingsService {
	t.Helper()
	settings, err := services.NewSettingsService(store, "admin1")
	if err != nil {
		t.Fatalf("Failed to create settings service: %v", err)
	}
	return settings
}

func TestUserLifecycle(t *testing.T) {
	store := setupTestRedis(t)

	user := testUser("100")
	if err := store.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	if err := store.CreateUser(user); !errors.Is(err, services.ErrUserExists) {
		t.Errorf("Expected ErrUserExists on duplicate create, got %v", err)
	}

	got, err := store.GetUser("100")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if got.Name != user.Name || got.ReferCode != "REF100" {
		t.Errorf("User round-trip mismatch: %+v", got)
	}

	if _, err := store.GetUser("missing"); !errors.Is(err, services.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}

	owner, err := store.LookupReferCode("REF100")
	if err != nil {
		t.Fatalf("Failed to look up refer code: %v", err)
	}
	if owner != "100" {
		t.Errorf("Expected refer code owner 100, got %q", owner)
	}

	ids, err := store.ListUserIDs()
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(ids) != 1 || ids[0] != "100" {
		t.Errorf("Expected user index [100], got %v", ids)
	}
}

func TestBalanceDebitCredit(t *testing.T) {
	store := setupTestRedis(t)

	if err := store.CreateUser(testUser("200")); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	balance, err := store.GetBalance("200")
	if err != nil {
		t.Fatalf("Failed to get balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("Expected zero starting balance, got %f", balance)
	}

	if _, err := store.CreditBalance("200", 150); err != nil {
		t.Fatalf("Failed to credit: %v", err)
	}

	newBalance, err := store.DebitBalance("200", 100)
	if err != nil {
		t.Fatalf("Failed to debit: %v", err)
	}
	if newBalance != 50 {
		t.Errorf("Expected balance 50 after debit, got %f", newBalance)
	}

	if _, err := store.DebitBalance("200", 100); !errors.Is(err, services.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}

	balance, _ = store.GetBalance("200")
	if balance != 50 {
		t.Errorf("Failed debit must not change balance, got %f", balance)
	}
}

func TestDeviceIndex(t *testing.T) {
	store := setupTestRedis(t)

	owner, err := store.LookupDevice("abc123")
	if err != nil {
		t.Fatalf("Failed to look up device: %v", err)
	}
	if owner != "" {
		t.Errorf("Expected no owner for unknown device, got %q", owner)
	}

	if err := store.BindDevice("300", "abc123"); err != nil {
		t.Fatalf("Failed to bind device: %v", err)
	}

	owner, err = store.LookupDevice("abc123")
	if err != nil {
		t.Fatalf("Failed to look up device: %v", err)
	}
	if owner != "300" {
		t.Errorf("Expected device owner 300, got %q", owner)
	}
}

func TestClaimGiftSlot(t *testing.T) {
	store := setupTestRedis(t)

	gift := &models.GiftCode{
		Code:      "ABC12",
		MinAmount: 10,
		MaxAmount: 50,
		Expiry:    time.Now().Add(time.Hour).Unix(),
		TotalUses: 2,
		IsActive:  true,
		CreatedAt: time.Now().Unix(),
	}
	if err := store.SaveGift(gift); err != nil {
		t.Fatalf("Failed to save gift: %v", err)
	}

	if err := store.ClaimGiftSlot("ABC12", "u1", 2); err != nil {
		t.Fatalf("First claim should succeed: %v", err)
	}
	if err := store.ClaimGiftSlot("ABC12", "u1", 2); !errors.Is(err, services.ErrAlreadyClaimed) {
		t.Errorf("Expected ErrAlreadyClaimed on repeat, got %v", err)
	}
	if err := store.ClaimGiftSlot("ABC12", "u2", 2); err != nil {
		t.Fatalf("Second claimant should succeed: %v", err)
	}
	if err := store.ClaimGiftSlot("ABC12", "u3", 2); !errors.Is(err, services.ErrGiftLimitReached) {
		t.Errorf("Expected ErrGiftLimitReached at cap, got %v", err)
	}

	got, err := store.GetGift("ABC12")
	if err != nil {
		t.Fatalf("Failed to get gift: %v", err)
	}
	if got.UsedCount != 2 {
		t.Errorf("Expected used count 2, got %d", got.UsedCount)
	}
}

func TestWithdrawalIndexes(t *testing.T) {
	store := setupTestRedis(t)

	withdrawal := &models.Transaction{
		TxID:   "AAAAA",
		UserID: "400",
		Name:   "Test User",
		Amount: 120,
		UPI:    "test@upi",
		Status: models.StatusTxPending,
		Date:   time.Now().Unix(),
	}
	if err := store.SaveTransaction(withdrawal); err != nil {
		t.Fatalf("Failed to save withdrawal: %v", err)
	}

	bonus := &models.Transaction{
		TxID:   "BONUS-AAAAA",
		UserID: "400",
		Name:   models.TxNameSignupBonus,
		Amount: 50,
		UPI:    "-",
		Status: models.StatusTxCompleted,
		Date:   time.Now().Unix(),
	}
	if err := store.SaveTransaction(bonus); err != nil {
		t.Fatalf("Failed to save bonus entry: %v", err)
	}

	pending, err := store.PendingWithdrawals()
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].TxID != "AAAAA" {
		t.Errorf("Expected one pending withdrawal AAAAA, got %+v", pending)
	}

	all, err := store.AllWithdrawals(10)
	if err != nil {
		t.Fatalf("Failed to list withdrawals: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Bonus entries must not land in the withdrawal index, got %d entries", len(all))
	}

	history, err := store.UserTransactions("400", 10)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("Expected both entries in user history, got %d", len(history))
	}

	withdrawal.Status = models.StatusTxCompleted
	withdrawal.UTR = "UTR001"
	if err := store.UpdateTransaction(withdrawal); err != nil {
		t.Fatalf("Failed to update transaction: %v", err)
	}

	pending, _ = store.PendingWithdrawals()
	if len(pending) != 0 {
		t.Errorf("Completed withdrawal must leave the pending set, got %+v", pending)
	}

	got, err := store.GetTransaction("AAAAA")
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}
	if got.Status != models.StatusTxCompleted || got.UTR != "UTR001" {
		t.Errorf("Transaction update mismatch: %+v", got)
	}
}

func TestCheckRateLimit(t *testing.T) {
	store := setupTestRedis(t)

	for i := 0; i < 2; i++ {
		allowed, err := store.CheckRateLimit("500", "withdraw", 2, time.Minute)
		if err != nil {
			t.Fatalf("Rate limit check failed: %v", err)
		}
		if !allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}

	allowed, err := store.CheckRateLimit("500", "withdraw", 2, time.Minute)
	if err != nil {
		t.Fatalf("Rate limit check failed: %v", err)
	}
	if allowed {
		t.Error("Third request should be rejected")
	}
}

func TestReferredSet(t *testing.T) {
	store := setupTestRedis(t)

	added, err := store.AddReferredUser("600", "601")
	if err != nil {
		t.Fatalf("Failed to add referred user: %v", err)
	}
	if !added {
		t.Error("First add should report true")
	}

	added, err = store.AddReferredUser("600", "601")
	if err != nil {
		t.Fatalf("Failed to re-add referred user: %v", err)
	}
	if added {
		t.Error("Repeated add must report false")
	}

	count, err := store.ReferredCount("600")
	if err != nil {
		t.Fatalf("Failed to count referred: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected one referred user, got %d", count)
	}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
