package models

type TransactionStatus string

const (
	StatusTxPending   TransactionStatus = "pending"
	StatusTxCompleted TransactionStatus = "completed"
	StatusTxRejected  TransactionStatus = "rejected"
)

// Ledger entry names. Everything except a real withdrawal is created
// already completed; only withdrawals go through the pending queue.
const (
	TxNameSignupBonus    = "Signup Bonus"
	TxNameReferralBonus  = "Referral Bonus (Verified)"
	TxNameGiftCodeReward = "Gift Code Reward"
)

type Transaction struct {
	TxID   string            `json:"tx_id" redis:"tx_id"`
	UserID string            `json:"user_id" redis:"user_id"`
	Name   string            `json:"name" redis:"name"`
	Amount float64           `json:"amount" redis:"amount"`
	UPI    string            `json:"upi" redis:"upi"`
	Status TransactionStatus `json:"status" redis:"status"`
	UTR    string            `json:"utr,omitempty" redis:"utr"`
	Date   int64             `json:"date" redis:"date"`
}

// IsWithdrawal reports whether the entry is a real payout request as
// opposed to a bonus/reward entry.
func (t *Transaction) IsWithdrawal() bool {
	switch t.Name {
	case TxNameSignupBonus, TxNameReferralBonus, TxNameGiftCodeReward:
		return false
	}
	return true
}
