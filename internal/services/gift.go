package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"cyberearn-backend/internal/models"
)

type GiftService struct {
	store       *RedisService
	settings    *SettingsService
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewGiftService(store *RedisService, settings *SettingsService, broadcaster Broadcaster, logger *zap.Logger) *GiftService {
	return &GiftService{
		store:       store,
		settings:    settings,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Claim redeems a gift code for a user and returns the credited
// amount and the new balance. The per-user duplicate guard and the
// global usage cap are enforced independently; the cap check runs
// atomically in the store so racing claimants cannot exceed it.
func (g *GiftService) Claim(ctx context.Context, userID, code string) (float64, float64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	exists, err := g.store.UserExists(userID)
	if err != nil {
		return 0, 0, err
	}
	if !exists {
		return 0, 0, ErrUserNotFound
	}

	claimed, err := g.store.HasClaimedGift(userID, code)
	if err != nil {
		return 0, 0, err
	}
	if claimed {
		return 0, 0, ErrAlreadyClaimed
	}

	// Housekeeping pass: refresh derived expiry flags before lookup.
	// Not transactional; the claim script below is the real gate.
	g.refreshExpiry()

	gift, err := g.store.GetGift(code)
	if err != nil {
		return 0, 0, err
	}
	if gift.ExpiredNow(time.Now()) {
		return 0, 0, ErrGiftExpired
	}
	if !gift.IsActive {
		return 0, 0, ErrGiftInactive
	}

	if err := g.store.ClaimGiftSlot(code, userID, gift.TotalUses); err != nil {
		return 0, 0, err
	}

	amount := models.RandomReward(gift.MinAmount, gift.MaxAmount)

	newBalance, err := g.store.CreditBalance(userID, amount)
	if err != nil {
		return 0, 0, err
	}

	if err := g.store.AddClaimedGift(userID, code); err != nil {
		g.logger.Error("failed to record claimed gift", zap.String("user_id", userID), zap.String("code", code), zap.Error(err))
	}

	if err := g.store.SaveTransaction(&models.Transaction{
		TxID:   models.GenerateTxID("GIFT"),
		UserID: userID,
		Name:   models.TxNameGiftCodeReward,
		Amount: amount,
		UPI:    "-",
		Status: models.StatusTxCompleted,
		Date:   time.Now().Unix(),
	}); err != nil {
		g.logger.Error("failed to record gift reward", zap.String("user_id", userID), zap.Error(err))
	}

	g.broadcaster.BroadcastBalanceUpdate(userID, newBalance)
	return amount, newBalance, nil
}

// refreshExpiry flips the sticky expired flag on codes past their
// expiry or usage cap.
func (g *GiftService) refreshExpiry() {
	gifts, err := g.store.ListGifts()
	if err != nil {
		g.logger.Warn("gift expiry pass failed", zap.Error(err))
		return
	}

	now := time.Now()
	for _, gift := range gifts {
		if !gift.Expired && gift.ExpiredNow(now) {
			gift.Expired = true
			if err := g.store.SaveGift(gift); err != nil {
				g.logger.Warn("failed to persist expired flag", zap.String("code", gift.Code), zap.Error(err))
			}
		}
	}
}

// Create makes a new gift code from an admin request. An empty or
// auto-generate request gets a random 5-char code.
func (g *GiftService) Create(req *models.CreateGiftRequest, createdBy string) (*models.GiftCode, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if req.AutoGenerate || code == "" {
		code = models.GenerateGiftCode()
	} else if !models.CodeIsWellFormed(code) {
		return nil, ErrInvalidCode
	}

	if _, err := g.store.GetGift(code); err == nil {
		return nil, ErrCodeExists
	}

	minAmount := req.MinAmount
	maxAmount := req.MaxAmount
	if minAmount <= 0 {
		minAmount = 10
	}
	if maxAmount < minAmount {
		maxAmount = minAmount
	}

	expiryHours := req.ExpiryHours
	if expiryHours <= 0 {
		expiryHours = 2
	}
	totalUses := req.TotalUses
	if totalUses <= 0 {
		totalUses = 1
	}

	now := time.Now()
	gift := &models.GiftCode{
		Code:      code,
		MinAmount: minAmount,
		MaxAmount: maxAmount,
		Expiry:    now.Add(time.Duration(expiryHours) * time.Hour).Unix(),
		TotalUses: totalUses,
		IsActive:  true,
		CreatedAt: now.Unix(),
		CreatedBy: createdBy,
	}

	if err := g.store.SaveGift(gift); err != nil {
		return nil, err
	}
	return gift, nil
}

// Toggle flips is_active. Reactivation does not resurrect an expired
// code.
func (g *GiftService) Toggle(code string) error {
	gift, err := g.store.GetGift(code)
	if err != nil {
		return err
	}
	gift.IsActive = !gift.IsActive
	return g.store.SaveGift(gift)
}

func (g *GiftService) Delete(code string) error {
	if _, err := g.store.GetGift(code); err != nil {
		return err
	}
	return g.store.DeleteGift(code)
}

// List returns all codes with refreshed expiry flags, for the admin
// panel.
func (g *GiftService) List() ([]*models.GiftCode, error) {
	g.refreshExpiry()
	return g.store.ListGifts()
}
