package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cyberearn-backend/internal/services"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"
)

// Bot drives the long-polling Telegram side of the app: /start
// onboarding with the mini-app button, and auto-approval of channel
// join requests.
type Bot struct {
	messenger *Messenger
	users     *services.UserService
	settings  *services.SettingsService
	baseURL   string
	logger    *zap.Logger
}

func NewBot(messenger *Messenger, users *services.UserService, settings *services.SettingsService, baseURL string, logger *zap.Logger) *Bot {
	return &Bot{
		messenger: messenger,
		users:     users,
		settings:  settings,
		baseURL:   baseURL,
		logger:    logger,
	}
}

func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.messenger.Bot().UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %v", err)
	}

	handler, err := th.NewBotHandler(b.messenger.Bot(), updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %v", err)
	}

	handler.Handle(b.handleStart, th.CommandEqual("start"))

	handler.Handle(b.handleJoinRequest, func(ctx context.Context, update telego.Update) bool {
		return update.ChatJoinRequest != nil
	})

	b.logger.Info("telegram bot started")
	return handler.Start()
}

func (b *Bot) handleStart(ctx *th.Context, update telego.Update) error {
	message := update.Message
	uid := strconv.FormatInt(message.From.ID, 10)
	cfg := b.settings.Get()

	if cfg.BotsDisabled && !b.settings.IsAdmin(uid) {
		_ = b.messenger.SendMessage(ctx.Context(), uid, "⛔ *System Maintenance*")
		return nil
	}

	referCode := ""
	if parts := strings.Fields(message.Text); len(parts) > 1 {
		referCode = parts[1]
	}

	name := strings.TrimSpace(message.From.FirstName + " " + message.From.LastName)
	if name == "" {
		name = message.From.Username
	}

	if _, _, err := b.users.Register(ctx.Context(), uid, name, message.From.Username, referCode); err != nil {
		b.logger.Error("start registration failed", zap.String("user_id", uid), zap.Error(err))
		return nil
	}

	rows := make([][]telego.InlineKeyboardButton, 0, len(cfg.Channels)+2)
	for _, ch := range cfg.ActiveChannels() {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(ch.Name).WithURL(ch.Link),
		))
	}
	if !cfg.HideVerifyButton {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ VERIFY & START EARNING").WithWebApp(&telego.WebAppInfo{
				URL: fmt.Sprintf("%s/mini_app?user_id=%s", b.baseURL, uid),
			}),
		))
	}
	if b.settings.IsAdmin(uid) {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("👑 Open Admin Panel").WithURL(fmt.Sprintf("%s/admin_panel?user_id=%s", b.baseURL, uid)),
		))
	}

	caption := fmt.Sprintf("👋 *WELCOME %s!*\n\n🚀 Complete the steps below to start earning ₹%.0f!", name, cfg.WelcomeBonus)

	_, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(
		tu.ID(message.Chat.ID),
		caption,
	).WithParseMode(telego.ModeMarkdown).WithReplyMarkup(tu.InlineKeyboard(rows...)))
	if err != nil {
		b.logger.Warn("start reply failed", zap.String("user_id", uid), zap.Error(err))
	}
	return nil
}

// handleJoinRequest approves channel join requests so users who joined
// via an invite link pass the membership check immediately.
func (b *Bot) handleJoinRequest(ctx *th.Context, update telego.Update) error {
	req := update.ChatJoinRequest
	if err := b.messenger.ApproveJoinRequest(ctx.Context(), req.Chat.ID, req.From.ID); err != nil {
		b.logger.Error("auto approve failed",
			zap.Int64("chat_id", req.Chat.ID),
			zap.Int64("user_id", req.From.ID),
			zap.Error(err))
		return nil
	}
	b.logger.Info("auto-approved join request",
		zap.Int64("chat_id", req.Chat.ID),
		zap.Int64("user_id", req.From.ID))
	return nil
}
