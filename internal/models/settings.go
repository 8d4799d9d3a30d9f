package models

type Channel struct {
	Name     string `json:"btn_name"`
	Link     string `json:"link"`
	ID       string `json:"id"`
	Disabled bool   `json:"disabled,omitempty"`
}

type Settings struct {
	BotName string `json:"bot_name"`
	AppName string `json:"app_name"`

	WelcomeBonus   float64 `json:"welcome_bonus"`
	MinReferReward float64 `json:"min_refer_reward"`
	MaxReferReward float64 `json:"max_refer_reward"`
	MinWithdrawal  float64 `json:"min_withdrawal"`

	AutoWithdraw               bool `json:"auto_withdraw"`
	BotsDisabled               bool `json:"bots_disabled"`
	IgnoreDeviceCheck          bool `json:"ignore_device_check"`
	WithdrawDisabled           bool `json:"withdraw_disabled"`
	DisableChannelVerification bool `json:"disable_channel_verification"`
	HideVerifyButton           bool `json:"hide_verify_button"`

	Channels []Channel `json:"channels"`
	Admins   []string  `json:"admins"`
}

// DefaultSettings are applied once when no settings document exists,
// not merged on every read.
func DefaultSettings() *Settings {
	return &Settings{
		BotName:        "CYBER EARN ULTIMATE",
		AppName:        "Cyber Earn",
		WelcomeBonus:   50.0,
		MinReferReward: 10.0,
		MaxReferReward: 50.0,
		MinWithdrawal:  100.0,
		Channels:       []Channel{},
		Admins:         []string{},
	}
}

// ActiveChannels filters out channels an admin has disabled.
func (s *Settings) ActiveChannels() []Channel {
	var active []Channel
	for _, ch := range s.Channels {
		if !ch.Disabled {
			active = append(active, ch)
		}
	}
	return active
}

func (s *Settings) HasAdmin(userID string) bool {
	for _, id := range s.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
