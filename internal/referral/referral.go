// Package referral implements the one-time referral reward: when a
// referred user completes their first reading, their referrer is
// credited exactly once. Idempotency comes from the deterministic
// REFERRAL_FIRST_READING ledger transaction tagged with the referred
// user's ID, so replays and concurrent completions cannot double-pay.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/ledger"
	"github.com/veilmoth/arcana-api/internal/store"
)

// Trigger pays the referral reward after a completed reading. It runs as
// a fire-and-forget side effect: reading success never depends on it.
type Trigger struct {
	jobs      store.ReadingJobStore
	referrals store.ReferralStore
	ledger    ledger.Service
	logger    *slog.Logger
}

// NewTrigger creates a referral Trigger.
func NewTrigger(
	jobs store.ReadingJobStore,
	referrals store.ReferralStore,
	ledger ledger.Service,
	logger *slog.Logger,
) (*Trigger, error) {
	if jobs == nil {
		return nil, fmt.Errorf("jobs store cannot be nil")
	}
	if referrals == nil {
		return nil, fmt.Errorf("referral store cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		jobs:      jobs,
		referrals: referrals,
		ledger:    ledger,
		logger:    logger.With("component", "referral_trigger"),
	}, nil
}

// Process checks whether the user's latest completion was their first and
// pays their referrer if so. The returned error is informational; the
// dispatcher logs it and moves on.
func (t *Trigger) Process(ctx context.Context, userID uuid.UUID) error {
	completed, err := t.jobs.CountCompletedByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count completed readings: %w", err)
	}
	if completed != 1 {
		// Only the first completion pays; later completions are covered
		// by the ledger idempotency key anyway.
		return nil
	}

	link, err := t.referrals.GetLink(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrReferralNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load referral link: %w", err)
	}
	if link.ReferredBy == nil {
		return nil
	}

	granted, err := t.ledger.Grant(ctx,
		*link.ReferredBy,
		domain.CreditSourcePurchased,
		domain.ReferralRewardCredits,
		domain.EventReferralFirstReading,
		userID,
		map[string]string{"referred_user_id": userID.String()},
	)
	if err != nil {
		return fmt.Errorf("failed to grant referral reward: %w", err)
	}
	if !granted {
		t.logger.Debug("referral reward already granted",
			"referred_user_id", userID,
			"referrer_id", *link.ReferredBy)
		return nil
	}

	if err := t.referrals.MarkUsed(ctx, userID, time.Now().UTC()); err != nil {
		// The reward is already paid and idempotent; a failed stamp only
		// costs us a debug marker.
		t.logger.Warn("failed to mark referral link used",
			"referred_user_id", userID,
			"error", err)
	}

	t.logger.Info("referral reward granted",
		"referred_user_id", userID,
		"referrer_id", *link.ReferredBy,
		"credits", domain.ReferralRewardCredits)
	return nil
}
