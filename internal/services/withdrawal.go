package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cyberearn-backend/internal/models"
)

type WithdrawalService struct {
	store       *RedisService
	settings    *SettingsService
	notifier    Notifier
	broadcaster Broadcaster
	logger      *zap.Logger
	baseURL     string
}

func NewWithdrawalService(store *RedisService, settings *SettingsService, notifier Notifier, broadcaster Broadcaster, logger *zap.Logger, baseURL string) *WithdrawalService {
	return &WithdrawalService{
		store:       store,
		settings:    settings,
		notifier:    notifier,
		broadcaster: broadcaster,
		logger:      logger,
		baseURL:     baseURL,
	}
}

// Request validates and books a withdrawal. The balance is debited
// immediately, before payout confirmation; a rejected request credits
// it back. With auto_withdraw enabled the record completes on the
// spot with a synthesized payment reference.
func (w *WithdrawalService) Request(ctx context.Context, userID string, amount float64, upi string) (*models.Transaction, float64, error) {
	user, err := w.store.GetUser(userID)
	if err != nil {
		return nil, 0, err
	}

	settings := w.settings.Get()

	if settings.WithdrawDisabled {
		return nil, 0, ErrWithdrawalsDisabled
	}
	if !models.ValidUPI(upi) {
		return nil, 0, ErrInvalidUPI
	}
	// A zero or negative amount must never reach the debit; it would
	// credit the account.
	if amount <= 0 || amount < settings.MinWithdrawal {
		return nil, 0, ErrBelowMinimum
	}

	unlock := w.store.LockUser(userID)
	defer unlock()

	newBalance, err := w.store.DebitBalance(userID, amount)
	if err != nil {
		return nil, 0, err
	}

	tx := &models.Transaction{
		TxID:   models.GenerateTxID(""),
		UserID: userID,
		Name:   user.Name,
		Amount: amount,
		UPI:    upi,
		Status: models.StatusTxPending,
		Date:   time.Now().Unix(),
	}

	if settings.AutoWithdraw {
		tx.Status = models.StatusTxCompleted
		tx.UTR = fmt.Sprintf("AUTO-%d", time.Now().Unix())
	}

	if err := w.store.SaveTransaction(tx); err != nil {
		// The debit happened; put it back rather than lose it.
		if _, crErr := w.store.CreditBalance(userID, amount); crErr != nil {
			w.logger.Error("failed to refund after ledger write failure",
				zap.String("user_id", userID), zap.Float64("amount", amount), zap.Error(crErr))
		}
		return nil, 0, err
	}

	w.broadcaster.BroadcastBalanceUpdate(userID, newBalance)

	if settings.AutoWithdraw {
		go w.notify(ctx, userID, fmt.Sprintf(
			"✅ *Auto-Withdrawal Paid!*\nAmt: ₹%.2f\nUTR: `%s`\nTxID: `%s`", amount, tx.UTR, tx.TxID))
	} else {
		msg := fmt.Sprintf("💸 *New Withdrawal*\nUser: %s\nAmt: ₹%.2f\nTxID: `%s`\n%s/admin_panel",
			user.Name, amount, tx.TxID, w.baseURL)
		for _, adminID := range w.settings.AdminRecipients() {
			go w.notify(ctx, adminID, msg)
		}
	}

	return tx, newBalance, nil
}

// Resolve applies an admin decision to a pending record. Resolving a
// non-pending record is a no-op; a rejection credits the debited
// amount back exactly once.
func (w *WithdrawalService) Resolve(ctx context.Context, txID string, decision models.TransactionStatus, utr string) (*models.Transaction, error) {
	if decision != models.StatusTxCompleted && decision != models.StatusTxRejected {
		return nil, fmt.Errorf("invalid decision %q", decision)
	}

	tx, err := w.store.GetTransaction(txID)
	if err != nil {
		return nil, err
	}

	unlock := w.store.LockUser(tx.UserID)
	defer unlock()

	// Re-read under the lock; two admins can race on the same record.
	tx, err = w.store.GetTransaction(txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.StatusTxPending {
		return tx, nil
	}

	tx.Status = decision
	tx.UTR = utr
	if err := w.store.UpdateTransaction(tx); err != nil {
		return nil, err
	}

	if decision == models.StatusTxCompleted {
		go w.notify(ctx, tx.UserID, fmt.Sprintf(
			"✅ *Withdrawal Paid!*\nAmt: ₹%.2f\nUTR: `%s`\nTxID: `%s`", tx.Amount, tx.UTR, tx.TxID))
		return tx, nil
	}

	newBalance, err := w.store.CreditBalance(tx.UserID, tx.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to refund rejected withdrawal: %v", err)
	}

	w.broadcaster.BroadcastBalanceUpdate(tx.UserID, newBalance)
	go w.notify(ctx, tx.UserID, fmt.Sprintf(
		"❌ *Withdrawal Rejected*\nAmt: ₹%.2f\nRefunded to balance.\nTxID: `%s`", tx.Amount, tx.TxID))

	return tx, nil
}

func (w *WithdrawalService) notify(ctx context.Context, chatID, text string) {
	if err := w.notifier.SendMessage(context.WithoutCancel(ctx), chatID, text); err != nil {
		w.logger.Warn("withdrawal notification failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}
