package models

type VerifyRequest struct {
	UserID string `json:"user_id"`
	FP     string `json:"fp"`
}

type WithdrawRequest struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount" binding:"required"`
	UPI    string  `json:"upi" binding:"required"`
}

type ClaimGiftRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code" binding:"required"`
}

// VerifyStep is one entry of the progressive verification trace shown
// by the mini-app.
type VerifyStep struct {
	Step    string `json:"step"`
	Status  string `json:"status"` // checking, passed, failed
	Message string `json:"message"`
}

const (
	StepDevice   = "device"
	StepChannels = "channels"
	StepBonus    = "bonus"

	StepChecking = "checking"
	StepPassed   = "passed"
	StepFailed   = "failed"
)

type ProcessWithdrawRequest struct {
	TxID   string `json:"tx_id" binding:"required"`
	Status string `json:"status" binding:"required"`
	UTR    string `json:"utr"`
}

type CreateGiftRequest struct {
	Code         string  `json:"code"`
	AutoGenerate bool    `json:"auto_generate"`
	MinAmount    float64 `json:"min_amount"`
	MaxAmount    float64 `json:"max_amount"`
	ExpiryHours  int     `json:"expiry_hours"`
	TotalUses    int     `json:"total_uses"`
}

type ToggleGiftRequest struct {
	Code   string `json:"code" binding:"required"`
	Action string `json:"action" binding:"required"` // toggle, delete
}

type ManageAdminRequest struct {
	ID     string `json:"id" binding:"required"`
	Action string `json:"action" binding:"required"` // add, remove
}

type ChannelRequest struct {
	Action string `json:"action" binding:"required"` // add, delete
	Name   string `json:"name"`
	Link   string `json:"link"`
	ID     string `json:"id"`
	Index  int    `json:"index"`
}

type UpdateBasicRequest struct {
	MinWithdrawal  *float64 `json:"min_withdrawal"`
	WelcomeBonus   *float64 `json:"welcome_bonus"`
	MinReferReward *float64 `json:"min_refer_reward"`
	MaxReferReward *float64 `json:"max_refer_reward"`
	AppName        *string  `json:"app_name"`
	BotName        *string  `json:"bot_name"`

	BotsDisabled               *bool `json:"bots_disabled"`
	AutoWithdraw               *bool `json:"auto_withdraw"`
	IgnoreDeviceCheck          *bool `json:"ignore_device_check"`
	WithdrawDisabled           *bool `json:"withdraw_disabled"`
	DisableChannelVerification *bool `json:"disable_channel_verification"`
	HideVerifyButton           *bool `json:"hide_verify_button"`
}
