package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cyberearn-backend/internal/config"
	"cyberearn-backend/internal/models"
)

type RedisService struct {
	client *redis.Client
	ctx    context.Context
	locks  *userLocks
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{
		client: client,
		ctx:    ctx,
		locks:  newUserLocks(),
	}, nil
}

// NewRedisServiceWithClient wraps an existing client. Tests use this
// with miniredis.
func NewRedisServiceWithClient(client *redis.Client) *RedisService {
	return &RedisService{
		client: client,
		ctx:    context.Background(),
		locks:  newUserLocks(),
	}
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// LockUser serializes multi-step mutations of a single user record.
// Returns the unlock func.
func (s *RedisService) LockUser(userID string) func() {
	return s.locks.lock(userID)
}

// ---- users ----

// CreateUser persists a new user and its refer-code index entry.
// Fails with ErrUserExists when the profile is already present.
func (s *RedisService) CreateUser(user *models.User) error {
	key := fmt.Sprintf(KeyUserProfile, user.ID)

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %v", err)
	}

	ok, err := s.client.SetNX(s.ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create user: %v", err)
	}
	if !ok {
		return ErrUserExists
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(s.ctx, KeyUsersIndex, user.ID)
	pipe.Set(s.ctx, fmt.Sprintf(KeyReferCodeIndex, user.ReferCode), user.ID, 0)
	pipe.SetNX(s.ctx, fmt.Sprintf(KeyUserBalance, user.ID), "0", 0)
	if _, err := pipe.Exec(s.ctx); err != nil {
		return fmt.Errorf("failed to index user: %v", err)
	}

	return nil
}

func (s *RedisService) GetUser(userID string) (*models.User, error) {
	key := fmt.Sprintf(KeyUserProfile, userID)

	data, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %v", err)
	}

	return &user, nil
}

func (s *RedisService) SaveUser(user *models.User) error {
	key := fmt.Sprintf(KeyUserProfile, user.ID)

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %v", err)
	}

	return s.client.Set(s.ctx, key, data, 0).Err()
}

func (s *RedisService) UserExists(userID string) (bool, error) {
	n, err := s.client.Exists(s.ctx, fmt.Sprintf(KeyUserProfile, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check user: %v", err)
	}
	return n > 0, nil
}

func (s *RedisService) ListUserIDs() ([]string, error) {
	ids, err := s.client.SMembers(s.ctx, KeyUsersIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %v", err)
	}
	return ids, nil
}

// ---- balance ----

func (s *RedisService) GetBalance(userID string) (float64, error) {
	val, err := s.client.Get(s.ctx, fmt.Sprintf(KeyUserBalance, userID)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %v", err)
	}
	return val, nil
}

func (s *RedisService) CreditBalance(userID string, amount float64) (float64, error) {
	newBal, err := s.client.IncrByFloat(s.ctx, fmt.Sprintf(KeyUserBalance, userID), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to credit balance: %v", err)
	}
	return newBal, nil
}

var debitBalanceScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local balance = tonumber(redis.call("GET", key) or "0")
	if balance < amount then
		return redis.error_reply("insufficient balance")
	end

	return redis.call("INCRBYFLOAT", key, -amount)
`)

// DebitBalance atomically subtracts amount, failing with
// ErrInsufficientBalance instead of going negative.
func (s *RedisService) DebitBalance(userID string, amount float64) (float64, error) {
	key := fmt.Sprintf(KeyUserBalance, userID)

	res, err := debitBalanceScript.Run(s.ctx, s.client, []string{key}, amount).Result()
	if err != nil {
		if strings.Contains(err.Error(), "insufficient balance") {
			return 0, ErrInsufficientBalance
		}
		return 0, fmt.Errorf("failed to debit balance: %v", err)
	}

	var newBal float64
	switch v := res.(type) {
	case string:
		fmt.Sscanf(v, "%f", &newBal)
	case int64:
		newBal = float64(v)
	}
	return newBal, nil
}

// ---- secondary indexes ----

// LookupDevice returns the user id a verified device hash is bound to,
// or "" when the hash is unclaimed.
func (s *RedisService) LookupDevice(hash string) (string, error) {
	uid, err := s.client.Get(s.ctx, fmt.Sprintf(KeyDeviceIndex, hash)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup device: %v", err)
	}
	return uid, nil
}

// BindDevice claims a device hash for a user. Only called once the
// device step passes, so the index holds verified devices only.
func (s *RedisService) BindDevice(userID, hash string) error {
	return s.client.Set(s.ctx, fmt.Sprintf(KeyDeviceIndex, hash), userID, 0).Err()
}

func (s *RedisService) LookupReferCode(code string) (string, error) {
	uid, err := s.client.Get(s.ctx, fmt.Sprintf(KeyReferCodeIndex, code)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup refer code: %v", err)
	}
	return uid, nil
}

// ---- referral / claimed-gift sets ----

// AddReferredUser appends uid to the referrer's referred set. The
// true return means the pair was new, which is the at-most-once guard
// for referral payouts.
func (s *RedisService) AddReferredUser(referrerID, uid string) (bool, error) {
	added, err := s.client.SAdd(s.ctx, fmt.Sprintf(KeyUserReferred, referrerID), uid).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add referred user: %v", err)
	}
	return added == 1, nil
}

func (s *RedisService) ReferredUsers(referrerID string) ([]string, error) {
	return s.client.SMembers(s.ctx, fmt.Sprintf(KeyUserReferred, referrerID)).Result()
}

func (s *RedisService) ReferredCount(referrerID string) (int, error) {
	n, err := s.client.SCard(s.ctx, fmt.Sprintf(KeyUserReferred, referrerID)).Result()
	return int(n), err
}

func (s *RedisService) HasClaimedGift(userID, code string) (bool, error) {
	return s.client.SIsMember(s.ctx, fmt.Sprintf(KeyUserClaimed, userID), code).Result()
}

func (s *RedisService) AddClaimedGift(userID, code string) error {
	return s.client.SAdd(s.ctx, fmt.Sprintf(KeyUserClaimed, userID), code).Err()
}

// ---- gifts ----

func (s *RedisService) SaveGift(gift *models.GiftCode) error {
	data, err := json.Marshal(gift)
	if err != nil {
		return fmt.Errorf("failed to marshal gift: %v", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(s.ctx, fmt.Sprintf(KeyGift, gift.Code), data, 0)
	pipe.SAdd(s.ctx, KeyGiftsIndex, gift.Code)
	_, err = pipe.Exec(s.ctx)
	return err
}

func (s *RedisService) GetGift(code string) (*models.GiftCode, error) {
	data, err := s.client.Get(s.ctx, fmt.Sprintf(KeyGift, code)).Result()
	if err == redis.Nil {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gift: %v", err)
	}

	var gift models.GiftCode
	if err := json.Unmarshal([]byte(data), &gift); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gift: %v", err)
	}

	used, err := s.client.SCard(s.ctx, fmt.Sprintf(KeyGiftUsed, code)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count gift uses: %v", err)
	}
	gift.UsedCount = int(used)

	return &gift, nil
}

func (s *RedisService) ListGifts() ([]*models.GiftCode, error) {
	codes, err := s.client.SMembers(s.ctx, KeyGiftsIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list gifts: %v", err)
	}

	var gifts []*models.GiftCode
	for _, code := range codes {
		gift, err := s.GetGift(code)
		if err != nil {
			continue
		}
		gifts = append(gifts, gift)
	}
	return gifts, nil
}

func (s *RedisService) DeleteGift(code string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(s.ctx, fmt.Sprintf(KeyGift, code))
	pipe.Del(s.ctx, fmt.Sprintf(KeyGiftUsed, code))
	pipe.SRem(s.ctx, KeyGiftsIndex, code)
	_, err := pipe.Exec(s.ctx)
	return err
}

var claimGiftSlotScript = redis.NewScript(`
	local usedKey = KEYS[1]
	local uid = ARGV[1]
	local totalUses = tonumber(ARGV[2])

	if redis.call("SISMEMBER", usedKey, uid) == 1 then
		return "claimed"
	end
	if redis.call("SCARD", usedKey) >= totalUses then
		return "limit"
	end
	redis.call("SADD", usedKey, uid)
	return "ok"
`)

// ClaimGiftSlot takes one usage slot of a gift code for uid. The
// membership check, cap check and append happen in one script so two
// users racing for the last slot cannot both win.
func (s *RedisService) ClaimGiftSlot(code, uid string, totalUses int) error {
	key := fmt.Sprintf(KeyGiftUsed, code)

	res, err := claimGiftSlotScript.Run(s.ctx, s.client, []string{key}, uid, totalUses).Result()
	if err != nil {
		return fmt.Errorf("failed to claim gift slot: %v", err)
	}

	switch res {
	case "claimed":
		return ErrAlreadyClaimed
	case "limit":
		return ErrGiftLimitReached
	}
	return nil
}

func (s *RedisService) GiftUsedBy(code string) ([]string, error) {
	return s.client.SMembers(s.ctx, fmt.Sprintf(KeyGiftUsed, code)).Result()
}

// ---- settings ----

// LoadSettings returns nil without error when no settings document
// exists yet; the settings service seeds defaults in that case.
func (s *RedisService) LoadSettings() (*models.Settings, error) {
	data, err := s.client.Get(s.ctx, KeySettings).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %v", err)
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %v", err)
	}
	return &settings, nil
}

func (s *RedisService) SaveSettings(settings *models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %v", err)
	}
	return s.client.Set(s.ctx, KeySettings, data, 0).Err()
}

// ---- ledger ----

func (s *RedisService) SaveTransaction(tx *models.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %v", err)
	}

	score := float64(tx.Date)

	pipe := s.client.TxPipeline()
	pipe.Set(s.ctx, fmt.Sprintf(KeyTransaction, tx.TxID), data, 0)
	pipe.ZAdd(s.ctx, fmt.Sprintf(KeyUserLedger, tx.UserID), redis.Z{Score: score, Member: tx.TxID})
	if tx.IsWithdrawal() {
		pipe.ZAdd(s.ctx, KeyWithdrawalsAll, redis.Z{Score: score, Member: tx.TxID})
	}
	if tx.Status == models.StatusTxPending {
		pipe.SAdd(s.ctx, KeyWithdrawalsPending, tx.TxID)
	}
	if _, err := pipe.Exec(s.ctx); err != nil {
		return fmt.Errorf("failed to save transaction: %v", err)
	}
	return nil
}

func (s *RedisService) GetTransaction(txID string) (*models.Transaction, error) {
	data, err := s.client.Get(s.ctx, fmt.Sprintf(KeyTransaction, txID)).Result()
	if err == redis.Nil {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %v", err)
	}

	var tx models.Transaction
	if err := json.Unmarshal([]byte(data), &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %v", err)
	}
	return &tx, nil
}

// UpdateTransaction rewrites a record after its single status
// transition and drops it from the pending queue.
func (s *RedisService) UpdateTransaction(tx *models.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %v", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(s.ctx, fmt.Sprintf(KeyTransaction, tx.TxID), data, 0)
	if tx.Status != models.StatusTxPending {
		pipe.SRem(s.ctx, KeyWithdrawalsPending, tx.TxID)
	}
	_, err = pipe.Exec(s.ctx)
	return err
}

func (s *RedisService) UserTransactions(userID string, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	txIDs, err := s.client.ZRevRange(s.ctx, fmt.Sprintf(KeyUserLedger, userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %v", err)
	}

	var transactions []*models.Transaction
	for _, txID := range txIDs {
		tx, err := s.GetTransaction(txID)
		if err != nil {
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

func (s *RedisService) PendingWithdrawals() ([]*models.Transaction, error) {
	txIDs, err := s.client.SMembers(s.ctx, KeyWithdrawalsPending).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %v", err)
	}

	var transactions []*models.Transaction
	for _, txID := range txIDs {
		tx, err := s.GetTransaction(txID)
		if err != nil {
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// AllWithdrawals lists real payout records newest first for the admin
// queue view.
func (s *RedisService) AllWithdrawals(limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	txIDs, err := s.client.ZRevRange(s.ctx, KeyWithdrawalsAll, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %v", err)
	}

	var transactions []*models.Transaction
	for _, txID := range txIDs {
		tx, err := s.GetTransaction(txID)
		if err != nil {
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// ---- leaderboard ----

func (s *RedisService) SaveLeaderboard(snap *models.LeaderboardSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %v", err)
	}
	return s.client.Set(s.ctx, KeyLeaderboard, data, 0).Err()
}

func (s *RedisService) GetLeaderboard() (*models.LeaderboardSnapshot, error) {
	data, err := s.client.Get(s.ctx, KeyLeaderboard).Result()
	if err == redis.Nil {
		return &models.LeaderboardSnapshot{Data: []models.LeaderboardEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %v", err)
	}

	var snap models.LeaderboardSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal leaderboard: %v", err)
	}
	return &snap, nil
}

// ---- rate limiting ----

func (s *RedisService) CheckRateLimit(userID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(s.ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(s.ctx, key, window)
	}

	return count <= int64(limit), nil
}
