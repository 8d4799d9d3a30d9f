package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"
)

// Messenger wraps the Telegram Bot API as the messaging collaborator:
// outbound notifications, channel-membership queries and join-request
// approval.
type Messenger struct {
	bot    *telego.Bot
	logger *zap.Logger
}

func NewMessenger(token string, logger *zap.Logger) (*Messenger, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Messenger{bot: bot, logger: logger}, nil
}

func (m *Messenger) Bot() *telego.Bot {
	return m.bot
}

func (m *Messenger) SendMessage(ctx context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	_, err = m.bot.SendMessage(ctx, tu.Message(tu.ID(id), text).WithParseMode(telego.ModeMarkdown))
	return err
}

// IsChatMember reports whether the user has joined the channel.
// member, administrator, creator and restricted all count as joined.
func (m *Messenger) IsChatMember(ctx context.Context, channelID, userID string) (bool, error) {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	member, err := m.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: chatID(channelID),
		UserID: uid,
	})
	if err != nil {
		return false, err
	}

	switch member.MemberStatus() {
	case telego.MemberStatusMember, telego.MemberStatusAdministrator,
		telego.MemberStatusCreator, telego.MemberStatusRestricted:
		return true, nil
	}
	return false, nil
}

func (m *Messenger) ApproveJoinRequest(ctx context.Context, channelID int64, userID int64) error {
	return m.bot.ApproveChatJoinRequest(ctx, &telego.ApproveChatJoinRequestParams{
		ChatID: telego.ChatID{ID: channelID},
		UserID: userID,
	})
}

// chatID accepts either a numeric channel id ("-1001234...") or a
// public username ("@channel").
func chatID(raw string) telego.ChatID {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return telego.ChatID{ID: id}
	}
	if !strings.HasPrefix(raw, "@") {
		raw = "@" + raw
	}
	return telego.ChatID{Username: raw}
}
