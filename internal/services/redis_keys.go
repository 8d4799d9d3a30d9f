package services

import "time"

const (
	KeyUserProfile  = "user:%s:profile"
	KeyUserBalance  = "user:%s:balance"
	KeyUserReferred = "user:%s:referred"
	KeyUserClaimed  = "user:%s:claimed_gifts"
	KeyUserLedger   = "user:%s:transactions"
	KeyUsersIndex   = "users:index"

	KeyDeviceIndex    = "index:device:%s"
	KeyReferCodeIndex = "index:refercode:%s"

	KeySettings = "settings"

	KeyTransaction        = "transaction:%s"
	KeyWithdrawalsAll     = "withdrawals:all"
	KeyWithdrawalsPending = "withdrawals:pending"

	KeyGift       = "gift:%s"
	KeyGiftUsed   = "gift:%s:used"
	KeyGiftsIndex = "gifts:index"

	KeyLeaderboard = "leaderboard"

	KeyRateLimit = "ratelimit:%s:%s"

	DefaultRateLimitVerify   = 10 // per minute
	DefaultRateLimitClaim    = 10
	DefaultRateLimitWithdraw = 5
)

// LeaderboardRefreshInterval drives the background snapshot ticker.
const LeaderboardRefreshInterval = 5 * time.Minute
