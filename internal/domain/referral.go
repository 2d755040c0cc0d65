package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReferralLink records who referred a user. ReferredBy is set at most
// once, at signup; UsedAt is stamped when the referral reward is paid.
type ReferralLink struct {
	UserID     uuid.UUID  `json:"user_id"`
	ReferredBy *uuid.UUID `json:"referred_by,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ReferralRewardCredits is the number of purchased-tier credits granted
// to a referrer when a referred user completes their first reading.
const ReferralRewardCredits = 2
