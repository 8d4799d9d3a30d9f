package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cyberearn-backend/internal/models"
)

type VerificationService struct {
	store       *RedisService
	settings    *SettingsService
	channels    ChannelChecker
	notifier    Notifier
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewVerificationService(store *RedisService, settings *SettingsService, channels ChannelChecker, notifier Notifier, broadcaster Broadcaster, logger *zap.Logger) *VerificationService {
	return &VerificationService{
		store:       store,
		settings:    settings,
		channels:    channels,
		notifier:    notifier,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// VerifyResult carries the outcome plus the step-by-step trace the
// mini-app renders progressively. Steps are populated on failures
// too.
type VerifyResult struct {
	FirstTime      bool
	Bonus          float64
	Balance        float64
	DeviceVerified bool
	Steps          []models.VerifyStep
}

// Verify runs the device check, the channel-membership check and the
// bonus commit for one user. Device state committed in the device
// step survives a later channel failure. The welcome bonus and the
// referral payout happen only on the first successful verification.
func (v *VerificationService) Verify(ctx context.Context, userID, fp, clientIP, userAgent string) (*VerifyResult, error) {
	// The user snapshot must be taken under the lock; the verified
	// flag read here is what commit uses to decide first-time-ness.
	unlock := v.store.LockUser(userID)
	defer unlock()

	user, err := v.store.GetUser(userID)
	if err != nil {
		return nil, err
	}

	settings := v.settings.Get()
	result := &VerifyResult{}

	if err := v.deviceStep(user, settings, fp, clientIP, userAgent, result); err != nil {
		return result, err
	}

	if err := v.channelStep(ctx, user, settings, result); err != nil {
		return result, err
	}

	if err := v.commit(ctx, user, settings, clientIP, result); err != nil {
		return result, err
	}

	balance, err := v.store.GetBalance(userID)
	if err != nil {
		return result, err
	}
	result.Balance = balance
	result.DeviceVerified = user.DeviceVerified

	v.broadcaster.BroadcastBalanceUpdate(userID, balance)
	return result, nil
}

func (v *VerificationService) deviceStep(user *models.User, settings *models.Settings, fp, clientIP, userAgent string, result *VerifyResult) error {
	if settings.IgnoreDeviceCheck {
		result.Steps = append(result.Steps, models.VerifyStep{
			Step: models.StepDevice, Status: models.StepPassed, Message: "Device check disabled",
		})
		return nil
	}
	if fp == "" || fp == "skip" {
		return nil
	}

	result.Steps = append(result.Steps, models.VerifyStep{
		Step: models.StepDevice, Status: models.StepChecking, Message: "Checking device...",
	})

	if user.DeviceVerified {
		result.Steps = append(result.Steps, models.VerifyStep{
			Step: models.StepDevice, Status: models.StepPassed, Message: "Device already verified",
		})
		return nil
	}

	hash := Fingerprint(clientIP, userAgent, fp)

	owner, err := v.store.LookupDevice(hash)
	if err != nil {
		return err
	}
	if owner != "" && owner != user.ID {
		result.Steps = append(result.Steps, models.VerifyStep{
			Step: models.StepDevice, Status: models.StepFailed,
			Message: "Device already used by another account! Please use a different device.",
		})
		return ErrDeviceConflict
	}

	// Commit the device binding now; a later channel failure must not
	// undo it.
	user.DeviceID = hash
	user.DeviceVerified = true
	if err := v.store.BindDevice(user.ID, hash); err != nil {
		return err
	}
	if err := v.store.SaveUser(user); err != nil {
		return err
	}

	result.Steps = append(result.Steps, models.VerifyStep{
		Step: models.StepDevice, Status: models.StepPassed, Message: "Device verified",
	})
	return nil
}

func (v *VerificationService) channelStep(ctx context.Context, user *models.User, settings *models.Settings, result *VerifyResult) error {
	if settings.DisableChannelVerification {
		result.Steps = append(result.Steps, models.VerifyStep{
			Step: models.StepChannels, Status: models.StepPassed, Message: "Channel check disabled",
		})
		return nil
	}

	result.Steps = append(result.Steps, models.VerifyStep{
		Step: models.StepChannels, Status: models.StepChecking, Message: "Checking channel memberships...",
	})

	var missing []string
	for i, ch := range settings.ActiveChannels() {
		if ch.ID == "" {
			continue
		}

		name := ch.Name
		if name == "" {
			name = fmt.Sprintf("Channel %d", i+1)
		}

		member, err := v.channels.IsChatMember(ctx, ch.ID, user.ID)
		if err != nil {
			// Membership-check failures count as "not joined";
			// the user retries.
			v.logger.Warn("channel membership check failed",
				zap.String("channel", ch.ID),
				zap.String("user_id", user.ID),
				zap.Error(err))
			member = false
		}
		if !member {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		err := &ChannelsIncompleteError{Missing: missing}
		result.Steps = append(result.Steps, models.VerifyStep{
			Step: models.StepChannels, Status: models.StepFailed, Message: err.Error(),
		})
		return err
	}

	result.Steps = append(result.Steps, models.VerifyStep{
		Step: models.StepChannels, Status: models.StepPassed, Message: "All channels verified",
	})
	return nil
}

func (v *VerificationService) commit(ctx context.Context, user *models.User, settings *models.Settings, clientIP string, result *VerifyResult) error {
	now := time.Now()
	user.LastChannelCheck = now.Unix()

	if user.Verified {
		// Repeat verification only refreshes the channel check.
		if err := v.store.SaveUser(user); err != nil {
			return err
		}
		result.Steps = append(result.Steps, models.VerifyStep{
			Step: models.StepBonus, Status: models.StepPassed, Message: "Already verified",
		})
		return nil
	}

	result.FirstTime = true
	user.Verified = true
	user.IP = clientIP
	if err := v.store.SaveUser(user); err != nil {
		return err
	}

	bonus := settings.WelcomeBonus
	if _, err := v.store.CreditBalance(user.ID, bonus); err != nil {
		return err
	}
	result.Bonus = bonus

	if err := v.store.SaveTransaction(&models.Transaction{
		TxID:   models.GenerateTxID("BONUS"),
		UserID: user.ID,
		Name:   models.TxNameSignupBonus,
		Amount: bonus,
		UPI:    "-",
		Status: models.StatusTxCompleted,
		Date:   now.Unix(),
	}); err != nil {
		return err
	}

	if user.ReferredBy != "" {
		v.payReferrer(ctx, user, settings, now)
	}

	result.Steps = append(result.Steps, models.VerifyStep{
		Step: models.StepBonus, Status: models.StepPassed,
		Message: fmt.Sprintf("%.2f bonus added", bonus),
	})
	return nil
}

// payReferrer credits the referrer once per referred user. The SADD
// on the referrer's referred set is the at-most-once guard.
func (v *VerificationService) payReferrer(ctx context.Context, user *models.User, settings *models.Settings, now time.Time) {
	referrerID, err := v.store.LookupReferCode(user.ReferredBy)
	if err != nil {
		v.logger.Error("referrer lookup failed", zap.String("refer_code", user.ReferredBy), zap.Error(err))
		return
	}
	if referrerID == "" || referrerID == user.ID {
		return
	}

	added, err := v.store.AddReferredUser(referrerID, user.ID)
	if err != nil {
		v.logger.Error("failed to record referred user", zap.String("referrer", referrerID), zap.Error(err))
		return
	}
	if !added {
		return
	}

	reward := models.RandomReward(settings.MinReferReward, settings.MaxReferReward)

	newBal, err := v.store.CreditBalance(referrerID, reward)
	if err != nil {
		v.logger.Error("failed to credit referral reward", zap.String("referrer", referrerID), zap.Error(err))
		return
	}

	if err := v.store.SaveTransaction(&models.Transaction{
		TxID:   models.GenerateTxID("REF-VERIFY"),
		UserID: referrerID,
		Name:   models.TxNameReferralBonus,
		Amount: reward,
		UPI:    "-",
		Status: models.StatusTxCompleted,
		Date:   now.Unix(),
	}); err != nil {
		v.logger.Error("failed to record referral reward", zap.String("referrer", referrerID), zap.Error(err))
	}

	v.broadcaster.BroadcastBalanceUpdate(referrerID, newBal)

	// Fire-and-forget; a failed message never affects the payout.
	go func() {
		msg := fmt.Sprintf("🎉 *Referral Bonus!*\nYou earned ₹%.2f for %s's verification", reward, user.Name)
		if err := v.notifier.SendMessage(context.WithoutCancel(ctx), referrerID, msg); err != nil {
			v.logger.Warn("referral notification failed", zap.String("referrer", referrerID), zap.Error(err))
		}
	}()
}

// Status recomputes the display status on every read. Verified users
// whose channel check has gone stale degrade back to "pending"
// visually; the paid bonus is never clawed back.
func (v *VerificationService) Status(user *models.User) models.UserStatus {
	if !user.Verified {
		return models.StatusPending
	}

	settings := v.settings.Get()

	deviceOK := user.DeviceVerified || settings.IgnoreDeviceCheck

	channelsOK := true
	if len(settings.ActiveChannels()) > 0 && !settings.DisableChannelVerification {
		if user.LastChannelCheck == 0 {
			channelsOK = false
		} else if time.Since(time.Unix(user.LastChannelCheck, 0)) > models.ChannelCheckWindow {
			channelsOK = false
		}
	}

	if deviceOK && channelsOK {
		return models.StatusVerified
	}
	return models.StatusPending
}
