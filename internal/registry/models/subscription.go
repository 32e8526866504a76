package models

import (
	"time"

	id "subvault/pkg/domain"
	dErrors "subvault/pkg/domain-errors"
)

// Duration bounds in milliseconds. A subscription must run for at least one
// millisecond and at most one year.
const (
	MinDurationMs int64 = 1
	MaxDurationMs int64 = 31_536_000_000
)

// Subscription is a named, priced, time-boxed content offering owned by one
// creator account.
//
// Invariants:
//   - Name is non-empty and unique within its account at all times
//   - Price and DurationMs are fixed at creation; no update operation exists
//   - Content is mutable only by the account's creator
//   - A subscription is Active while stored; cancellation removes the record
//     outright (terminal)
type Subscription struct {
	ID          id.SubscriptionID `json:"id"`
	AccountID   id.AccountID      `json:"account_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Price       uint64            `json:"price"`
	DurationMs  int64             `json:"duration_ms"`
	Content     []byte            `json:"-"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewSubscription validates invariants and constructs an Active subscription.
func NewSubscription(
	accountID id.AccountID,
	name, description string,
	price uint64,
	durationMs int64,
	content []byte,
	now time.Time,
) (*Subscription, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subscription name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "subscription name must be 128 characters or less")
	}
	if durationMs < MinDurationMs || durationMs > MaxDurationMs {
		return nil, dErrors.New(dErrors.CodeInvalidDuration, "duration must be between 1ms and one year")
	}
	return &Subscription{
		ID:          id.NewSubscriptionID(),
		AccountID:   accountID,
		Name:        name,
		Description: description,
		Price:       price,
		DurationMs:  durationMs,
		Content:     append([]byte(nil), content...),
		CreatedAt:   now,
	}, nil
}

// Duration returns the access window as a time.Duration.
func (s *Subscription) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// AccessGrant is a subscriber's proof of a time-bounded right to read one
// subscription's content. Grants are never mutated: a repurchase replaces the
// grant wholesale, resetting expiration forward from the purchase time.
type AccessGrant struct {
	Subscriber     id.Principal      `json:"subscriber"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	ExpiresAt      time.Time         `json:"expires_at"`
}

// NewAccessGrant creates a grant expiring at now + the subscription's
// duration.
func NewAccessGrant(subscriber id.Principal, sub *Subscription, now time.Time) AccessGrant {
	return AccessGrant{
		Subscriber:     subscriber,
		SubscriptionID: sub.ID,
		ExpiresAt:      now.Add(sub.Duration()),
	}
}

// ExpiredAt reports whether the grant has lapsed at the given instant.
// Expiry is inclusive: a grant is expired at exactly its expiration time.
func (g AccessGrant) ExpiredAt(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// Payment is the opaque value handed over by the payment rail. The core
// inspects only Amount, requires exact equality with the price, and then
// consumes the value. No change-making, no refunds.
type Payment struct {
	Amount uint64 `json:"amount"`
}

// Covers reports whether the payment exactly matches the asked price.
func (p Payment) Covers(price uint64) bool {
	return p.Amount == price
}
