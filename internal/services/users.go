package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cyberearn-backend/internal/models"
)

// UserService handles account creation. Accounts are created on first
// bot interaction and never deleted.
type UserService struct {
	store    *RedisService
	settings *SettingsService
	notifier Notifier
	logger   *zap.Logger
}

func NewUserService(store *RedisService, settings *SettingsService, notifier Notifier, logger *zap.Logger) *UserService {
	return &UserService{
		store:    store,
		settings: settings,
		notifier: notifier,
		logger:   logger,
	}
}

// Register creates the user if it does not exist yet and returns
// (user, isNew). referredBy is recorded as-is at creation and
// immutable afterwards; it is resolved against the refer-code index
// only when the user first verifies.
func (u *UserService) Register(ctx context.Context, userID, name, username, referredBy string) (*models.User, bool, error) {
	if user, err := u.store.GetUser(userID); err == nil {
		return user, false, nil
	} else if err != ErrUserNotFound {
		return nil, false, err
	}

	referCode, err := u.uniqueReferCode()
	if err != nil {
		return nil, false, err
	}

	user := &models.User{
		ID:         userID,
		Name:       name,
		Username:   username,
		ReferCode:  referCode,
		ReferredBy: referredBy,
		JoinedDate: time.Now().Unix(),
	}

	if err := u.store.CreateUser(user); err != nil {
		if err == ErrUserExists {
			existing, getErr := u.store.GetUser(userID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	u.notifyAdmins(ctx, user)
	return user, true, nil
}

func (u *UserService) uniqueReferCode() (string, error) {
	for i := 0; i < 10; i++ {
		code := models.GenerateReferCode()
		owner, err := u.store.LookupReferCode(code)
		if err != nil {
			return "", err
		}
		if owner == "" {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique refer code")
}

func (u *UserService) notifyAdmins(ctx context.Context, user *models.User) {
	msg := fmt.Sprintf("🔔 *New User*\nName: %s\nID: `%s`", user.Name, user.ID)
	if user.Username != "" {
		msg += fmt.Sprintf("\nUsername: @%s", user.Username)
	}
	if user.ReferredBy != "" {
		msg += fmt.Sprintf("\nReferred by: `%s`", user.ReferredBy)
	}

	for _, adminID := range u.settings.AdminRecipients() {
		adminID := adminID
		go func() {
			if err := u.notifier.SendMessage(context.WithoutCancel(ctx), adminID, msg); err != nil {
				u.logger.Warn("new-user notification failed", zap.String("admin", adminID), zap.Error(err))
			}
		}()
	}
}
