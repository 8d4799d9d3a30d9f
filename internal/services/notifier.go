package services

import "context"

// Notifier delivers Telegram messages. Delivery is best-effort:
// callers log failures and never roll back a balance mutation because
// a message could not be sent.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// ChannelChecker answers channel-membership queries. Errors are
// treated as "not a member" by the verification flow.
type ChannelChecker interface {
	IsChatMember(ctx context.Context, channelID, userID string) (bool, error)
}

// NoopNotifier is used when the bot token is absent (API-only mode)
// and in tests.
type NoopNotifier struct{}

func (NoopNotifier) SendMessage(ctx context.Context, chatID, text string) error {
	return nil
}

// OpenChannelChecker treats every user as a member. Used when channel
// verification runs without a bot connection.
type OpenChannelChecker struct{}

func (OpenChannelChecker) IsChatMember(ctx context.Context, channelID, userID string) (bool, error) {
	return true, nil
}
