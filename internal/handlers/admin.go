package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cyberearn-backend/internal/models"
	"cyberearn-backend/internal/services"
)

type AdminHandler struct {
	redisService *services.RedisService
	settings     *services.SettingsService
	verification *services.VerificationService
	withdrawals  *services.WithdrawalService
	gifts        *services.GiftService
	notifier     services.Notifier
	logger       *zap.Logger
}

func NewAdminHandler(
	redisService *services.RedisService,
	settings *services.SettingsService,
	verification *services.VerificationService,
	withdrawals *services.WithdrawalService,
	gifts *services.GiftService,
	notifier services.Notifier,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		redisService: redisService,
		settings:     settings,
		verification: verification,
		withdrawals:  withdrawals,
		gifts:        gifts,
		notifier:     notifier,
		logger:       logger,
	}
}

func (h *AdminHandler) UpdateBasic(c *gin.Context) {
	var req models.UpdateBasicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	err := h.settings.Update(func(s *models.Settings) {
		if req.MinWithdrawal != nil {
			s.MinWithdrawal = *req.MinWithdrawal
		}
		if req.WelcomeBonus != nil {
			s.WelcomeBonus = *req.WelcomeBonus
		}
		if req.MinReferReward != nil {
			s.MinReferReward = *req.MinReferReward
		}
		if req.MaxReferReward != nil {
			s.MaxReferReward = *req.MaxReferReward
		}
		if req.AppName != nil {
			s.AppName = *req.AppName
		}
		if req.BotName != nil {
			s.BotName = *req.BotName
		}
		if req.BotsDisabled != nil {
			s.BotsDisabled = *req.BotsDisabled
		}
		if req.AutoWithdraw != nil {
			s.AutoWithdraw = *req.AutoWithdraw
		}
		if req.IgnoreDeviceCheck != nil {
			s.IgnoreDeviceCheck = *req.IgnoreDeviceCheck
		}
		if req.WithdrawDisabled != nil {
			s.WithdrawDisabled = *req.WithdrawDisabled
		}
		if req.DisableChannelVerification != nil {
			s.DisableChannelVerification = *req.DisableChannelVerification
		}
		if req.HideVerifyButton != nil {
			s.HideVerifyButton = *req.HideVerifyButton
		}
	})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AdminHandler) ManageAdmins(c *gin.Context) {
	var req models.ManageAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	id := strings.TrimSpace(req.ID)
	err := h.settings.Update(func(s *models.Settings) {
		switch req.Action {
		case "add":
			if id == "" || id == h.settings.SuperAdminID() || s.HasAdmin(id) {
				return
			}
			s.Admins = append(s.Admins, id)
		case "remove":
			for i, a := range s.Admins {
				if a == id {
					s.Admins = append(s.Admins[:i], s.Admins[i+1:]...)
					break
				}
			}
		}
	})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AdminHandler) Channels(c *gin.Context) {
	var req models.ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	err := h.settings.Update(func(s *models.Settings) {
		switch req.Action {
		case "add":
			name := req.Name
			if name == "" {
				name = "Channel"
			}
			s.Channels = append(s.Channels, models.Channel{
				Name: name,
				Link: req.Link,
				ID:   req.ID,
			})
		case "delete":
			if req.Index >= 0 && req.Index < len(s.Channels) {
				s.Channels = append(s.Channels[:req.Index], s.Channels[req.Index+1:]...)
			}
		}
	})
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AdminHandler) ProcessWithdraw(c *gin.Context) {
	var req models.ProcessWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	_, err := h.withdrawals.Resolve(c.Request.Context(), req.TxID, models.TransactionStatus(req.Status), req.UTR)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Transaction not found"})
			return
		}
		h.logger.Error("process withdraw failed", zap.String("tx_id", req.TxID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AdminHandler) CreateGift(c *gin.Context) {
	var req models.CreateGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	gift, err := h.gifts.Create(&req, c.GetString("user_id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCodeExists):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Code already exists"})
		case errors.Is(err, services.ErrInvalidCode):
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Code must be 5 alphanumeric characters"})
		default:
			c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "code": gift.Code})
}

func (h *AdminHandler) ToggleGift(c *gin.Context) {
	var req models.ToggleGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	var err error
	switch req.Action {
	case "toggle":
		err = h.gifts.Toggle(strings.ToUpper(req.Code))
	case "delete":
		err = h.gifts.Delete(strings.ToUpper(req.Code))
	default:
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Unknown action"})
		return
	}
	if err != nil && !errors.Is(err, services.ErrInvalidCode) {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AdminHandler) ListGifts(c *gin.Context) {
	gifts, err := h.gifts.List()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "gifts": gifts})
}

// ListUsers returns the user roster with derived status, used by the
// admin dashboard.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	ids, err := h.redisService.ListUserIDs()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		user, err := h.redisService.GetUser(id)
		if err != nil {
			continue
		}
		balance, _ := h.redisService.GetBalance(id)
		referCount, _ := h.redisService.ReferredCount(id)
		out = append(out, gin.H{
			"id":              id,
			"name":            user.Name,
			"username":        user.Username,
			"balance":         balance,
			"refer_code":      user.ReferCode,
			"verified":        user.Verified,
			"device_verified": user.DeviceVerified,
			"status":          h.verification.Status(user),
			"refer_count":     referCount,
			"joined_date":     models.FormatDate(user.JoinedDate),
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "users": out, "total_users": len(ids)})
}

// ListWithdrawals returns real withdrawal requests, oldest last. Bonus
// and reward ledger entries are excluded by construction since only
// withdrawals land in the withdrawal indexes.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	all, err := h.redisService.AllWithdrawals(200)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}
	pending, err := h.redisService.PendingWithdrawals()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(all))
	for _, tx := range all {
		out = append(out, gin.H{
			"tx_id":   tx.TxID,
			"user_id": tx.UserID,
			"name":    tx.Name,
			"amount":  tx.Amount,
			"upi":     tx.UPI,
			"status":  tx.Status,
			"utr":     tx.UTR,
			"date":    models.FormatDate(tx.Date),
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "withdrawals": out, "pending_count": len(pending)})
}

type broadcastRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Text required"})
		return
	}

	ids, err := h.redisService.ListUserIDs()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": err.Error()})
		return
	}

	count := 0
	for _, id := range ids {
		if err := h.notifier.SendMessage(c.Request.Context(), id, req.Text); err != nil {
			h.logger.Warn("broadcast delivery failed", zap.String("user_id", id), zap.Error(err))
			continue
		}
		count++
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": count})
}

type sendToUserRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

func (h *AdminHandler) SendToUser(c *gin.Context) {
	var req sendToUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "User ID required"})
		return
	}

	if err := h.notifier.SendMessage(c.Request.Context(), req.UserID, req.Text); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "msg": "Error: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "msg": "Message sent successfully!"})
}
