package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"cyberearn-backend/internal/services"
)

type AuthHandler struct {
	users      *services.UserService
	jwtService *services.JWTService
	botToken   string
	logger     *zap.Logger
}

func NewAuthHandler(users *services.UserService, jwtService *services.JWTService, botToken string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		botToken:   botToken,
		logger:     logger,
	}
}

type webAppUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Authenticate validates Telegram WebApp init data and exchanges it
// for a JWT. The referral code from the start parameter is recorded on
// first contact, the same as when onboarding happens through the bot.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	initData := c.Query("initData")
	if initData == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "initData required"})
		return
	}

	if _, err := tu.ValidateWebAppData(h.botToken, initData); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid init data"})
		return
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed init data"})
		return
	}

	var tgUser webAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &tgUser); err != nil || tgUser.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user payload"})
		return
	}

	uid := strconv.FormatInt(tgUser.ID, 10)
	name := strings.TrimSpace(tgUser.FirstName + " " + tgUser.LastName)
	if name == "" {
		name = tgUser.Username
	}

	user, isNew, err := h.users.Register(c.Request.Context(), uid, name, tgUser.Username, values.Get("start_param"))
	if err != nil {
		h.logger.Error("auth registration failed", zap.String("user_id", uid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, err := h.jwtService.GenerateToken(uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"name":     user.Name,
			"username": user.Username,
			"verified": user.Verified,
			"is_new":   isNew,
		},
	})
}
