package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cyberearn-backend/internal/models"
	"cyberearn-backend/internal/services"
)

// APIHandler serves the mini-app endpoints. Responses keep the
// ok/msg envelope the frontend expects; business failures come back
// as ok:false with HTTP 200, transport failures use HTTP codes.
type APIHandler struct {
	redisService *services.RedisService
	verification *services.VerificationService
	gifts        *services.GiftService
	withdrawals  *services.WithdrawalService
	leaderboard  *services.LeaderboardService
	settings     *services.SettingsService
	botName      string
	logger       *zap.Logger
}

func NewAPIHandler(
	redisService *services.RedisService,
	verification *services.VerificationService,
	gifts *services.GiftService,
	withdrawals *services.WithdrawalService,
	leaderboard *services.LeaderboardService,
	settings *services.SettingsService,
	botName string,
	logger *zap.Logger,
) *APIHandler {
	return &APIHandler{
		redisService: redisService,
		verification: verification,
		gifts:        gifts,
		withdrawals:  withdrawals,
		leaderboard:  leaderboard,
		settings:     settings,
		botName:      botName,
		logger:       logger,
	}
}

func (h *APIHandler) Verify(c *gin.Context) {
	userID := c.GetString("user_id")

	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "User ID required"})
		return
	}

	result, err := h.verification.Verify(c.Request.Context(), userID, req.FP, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		var incomplete *services.ChannelsIncompleteError
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "User not found"})
		case errors.Is(err, services.ErrDeviceConflict):
			c.JSON(http.StatusOK, gin.H{
				"ok":    false,
				"msg":   "⚠️ Device already used by another account! Please use a different device or clear browser data.",
				"type":  "device",
				"steps": result.Steps,
				"retry": true,
			})
		case errors.As(err, &incomplete):
			c.JSON(http.StatusOK, gin.H{
				"ok":    false,
				"msg":   fmt.Sprintf("Please join: %s", strings.Join(incomplete.Missing, ", ")),
				"type":  "channels",
				"steps": result.Steps,
				"retry": true,
			})
		default:
			h.logger.Error("verify failed", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": fmt.Sprintf("Error: %v", err), "retry": true})
		}
		return
	}

	bonus := 0.0
	if result.FirstTime {
		bonus = result.Bonus
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"bonus":           bonus,
		"balance":         result.Balance,
		"verified":        true,
		"device_verified": result.DeviceVerified,
		"steps":           result.Steps,
	})
}

func (h *APIHandler) CheckVerification(c *gin.Context) {
	userID := c.GetString("user_id")

	user, err := h.redisService.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "User not found"})
		return
	}

	balance, err := h.redisService.GetBalance(userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"verified":        user.Verified,
		"device_verified": user.DeviceVerified,
		"balance":         balance,
		"name":            user.Name,
		"status":          h.verification.Status(user),
	})
}

func (h *APIHandler) GetBalance(c *gin.Context) {
	userID := c.GetString("user_id")

	user, err := h.redisService.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "balance": 0.0, "verified": false})
		return
	}

	balance, err := h.redisService.GetBalance(userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"balance":  balance,
		"verified": user.Verified,
	})
}

func (h *APIHandler) Withdraw(c *gin.Context) {
	userID := c.GetString("user_id")

	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Invalid Amount"})
		return
	}

	tx, newBalance, err := h.withdrawals.Request(c.Request.Context(), userID, req.Amount, req.UPI)
	if err != nil {
		cfg := h.settings.Get()
		switch {
		case errors.Is(err, services.ErrWithdrawalsDisabled):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "❌ Withdrawals are currently disabled"})
		case errors.Is(err, services.ErrInvalidUPI):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "❌ Invalid UPI Format"})
		case errors.Is(err, services.ErrBelowMinimum):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": fmt.Sprintf("⚠️ Min Withdraw: ₹%g", cfg.MinWithdrawal)})
		case errors.Is(err, services.ErrInsufficientBalance):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "❌ Insufficient Balance"})
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "User not found"})
		default:
			h.logger.Error("withdraw failed", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": fmt.Sprintf("Error: %v", err)})
		}
		return
	}

	auto := tx.Status == models.StatusTxCompleted
	msg := "✅ Request Sent! Waiting for Admin..."
	if auto {
		msg = fmt.Sprintf("✅ PAID! UTR: %s", tx.UTR)
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"msg":         msg,
		"auto":        auto,
		"utr":         tx.UTR,
		"tx_id":       tx.TxID,
		"new_balance": newBalance,
	})
}

func (h *APIHandler) ClaimGift(c *gin.Context) {
	userID := c.GetString("user_id")

	var req models.ClaimGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Invalid gift code"})
		return
	}

	amount, newBalance, err := h.gifts.Claim(c.Request.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "User not found"})
		case errors.Is(err, services.ErrAlreadyClaimed):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Already claimed this code"})
		case errors.Is(err, services.ErrGiftExpired):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "❌ Gift code expired"})
		case errors.Is(err, services.ErrGiftInactive):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Code is inactive"})
		case errors.Is(err, services.ErrGiftLimitReached):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Code usage limit reached"})
		case errors.Is(err, services.ErrInvalidCode):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Invalid gift code"})
		default:
			h.logger.Error("claim gift failed", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": fmt.Sprintf("Error: %v", err)})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"msg":         fmt.Sprintf("🎉 Gift code claimed! ₹%.2f added to your balance", amount),
		"amount":      amount,
		"new_balance": newBalance,
	})
}

func (h *APIHandler) History(c *gin.Context) {
	userID := c.GetString("user_id")

	txs, err := h.redisService.UserTransactions(userID, 10)
	if err != nil {
		c.JSON(http.StatusOK, []gin.H{})
		return
	}

	out := make([]gin.H, 0, len(txs))
	for _, tx := range txs {
		entry := gin.H{
			"tx_id":   tx.TxID,
			"user_id": tx.UserID,
			"name":    tx.Name,
			"amount":  tx.Amount,
			"upi":     tx.UPI,
			"status":  tx.Status,
			"date":    models.FormatDate(tx.Date),
		}
		if tx.UTR != "" {
			entry["utr"] = tx.UTR
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) GetReferInfo(c *gin.Context) {
	userID := c.GetString("user_id")

	user, err := h.redisService.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "User not found"})
		return
	}

	referredIDs, err := h.redisService.ReferredUsers(userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	details := make([]gin.H, 0, len(referredIDs))
	verified, pending := 0, 0
	for i, refID := range referredIDs {
		if i >= 20 {
			break
		}
		refUser, err := h.redisService.GetUser(refID)
		if err != nil {
			continue
		}
		status := h.verification.Status(refUser)
		isVerified := status == models.StatusVerified
		label := "⏳ PENDING"
		if isVerified {
			label = "✅ VERIFIED"
			verified++
		} else {
			pending++
		}
		details = append(details, gin.H{
			"id":          refID,
			"name":        refUser.Name,
			"username":    refUser.Username,
			"status":      label,
			"verified":    isVerified,
			"status_type": status,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":              true,
		"refer_code":      user.ReferCode,
		"refer_link":      fmt.Sprintf("https://t.me/%s?start=%s", h.botName, user.ReferCode),
		"referred_users":  details,
		"total_refers":    len(referredIDs),
		"verified_refers": verified,
		"pending_refers":  pending,
	})
}

func (h *APIHandler) Leaderboard(c *gin.Context) {
	snap, err := h.leaderboard.Get()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"last_updated": 0, "data": []gin.H{}})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
