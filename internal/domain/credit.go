package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Ledger event types. Each transaction records exactly one event.
const (
	EventReadingDeduct        = "READING_DEDUCT"
	EventReadingRefund        = "READING_REFUND"
	EventCreditGrant          = "CREDIT_GRANT"
	EventReferralFirstReading = "REFERRAL_FIRST_READING"
)

// ErrInsufficientCredit is returned when a debit cannot be covered by any
// credit source.
var ErrInsufficientCredit = errors.New("insufficient credit")

// CreditSourceKind identifies which balance tier a delta was applied to.
type CreditSourceKind string

// Credit source kinds, in spend priority order.
const (
	CreditSourceFree      CreditSourceKind = "free_allowance"
	CreditSourcePurchased CreditSourceKind = "purchased"
)

// CreditBalance is a user's spendable credit, split across tiers.
// Neither tier may go negative.
type CreditBalance struct {
	UserID        uuid.UUID `json:"user_id"`
	FreeAllowance int       `json:"free_allowance"`
	Purchased     int       `json:"purchased"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Spendable returns the total credit available across all tiers.
func (b CreditBalance) Spendable() int {
	return b.FreeAllowance + b.Purchased
}

// creditSource describes one balance tier: how much of it is available
// and how to apply a delta to it. Tiers are tried in spendOrder, so
// adding a tier is a matter of appending to the list.
type creditSource struct {
	kind      CreditSourceKind
	available func(b *CreditBalance) int
	apply     func(b *CreditBalance, delta int)
}

var spendOrder = []creditSource{
	{
		kind:      CreditSourceFree,
		available: func(b *CreditBalance) int { return b.FreeAllowance },
		apply:     func(b *CreditBalance, delta int) { b.FreeAllowance += delta },
	},
	{
		kind:      CreditSourcePurchased,
		available: func(b *CreditBalance) int { return b.Purchased },
		apply:     func(b *CreditBalance, delta int) { b.Purchased += delta },
	},
}

// Debit consumes amount from the first source that can cover it, in
// priority order, and reports which source was used. The balance is
// unchanged when ErrInsufficientCredit is returned.
func (b *CreditBalance) Debit(amount int) (CreditSourceKind, error) {
	for _, src := range spendOrder {
		if src.available(b) >= amount {
			src.apply(b, -amount)
			return src.kind, nil
		}
	}
	return "", ErrInsufficientCredit
}

// Credit adds amount back to the named source. Unknown kinds credit the
// purchased tier so value is never silently dropped.
func (b *CreditBalance) Credit(kind CreditSourceKind, amount int) {
	for _, src := range spendOrder {
		if src.kind == kind {
			src.apply(b, amount)
			return
		}
	}
	b.Purchased += amount
}

// LedgerTransaction is one append-only entry of the credit audit trail.
// Summing deltas per user reconstructs the current balance.
type LedgerTransaction struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	EventType      string            `json:"event_type"`
	DeltaFree      int               `json:"delta_free"`
	DeltaPurchased int               `json:"delta_purchased"`
	DeltaExp       int               `json:"delta_exp"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ledgerNamespace scopes deterministic transaction IDs to this ledger.
var ledgerNamespace = uuid.MustParse("9f2c6a1e-4b83-4d5f-a871-03c5ce2a9b47")

// TransactionID derives the deterministic ID for the transaction caused
// by the given event on the given reference (job or user). Retrying the
// same cause yields the same ID, which the store turns into a no-op.
func TransactionID(eventType string, ref uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(ledgerNamespace, []byte(eventType+":"+ref.String()))
}
