// Package events defines the registry's emitted event shapes. Events are
// fire-and-forget: emission failures are logged, never surfaced to the
// operation that produced them, and ordering follows operation commit order.
package events

import (
	"context"
	"time"

	id "subvault/pkg/domain"
)

// Kind names one of the three registry event types.
type Kind string

const (
	KindCreated   Kind = "subscription_created"
	KindPurchased Kind = "subscription_purchased"
	KindCancelled Kind = "subscription_cancelled"
)

// Event is emitted from domain logic to capture registry mutations. Keep it
// transport-agnostic so stores and sinks can fan out. Fields are populated
// per kind:
//
//   - Created: Name, Description, Price, DurationMs, Creator
//   - Purchased: Subscriber, SubscriptionID, ExpiresAt
//   - Cancelled: Subscriber, SubscriptionID
type Event struct {
	Kind           Kind              `json:"kind"`
	Timestamp      time.Time         `json:"timestamp"`
	AccountID      id.AccountID      `json:"account_id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id,omitempty"`
	Name           string            `json:"name,omitempty"`
	Description    string            `json:"description,omitempty"`
	Price          uint64            `json:"price,omitempty"`
	DurationMs     int64             `json:"duration_ms,omitempty"`
	Creator        id.Principal      `json:"creator,omitempty"`
	Subscriber     id.Principal      `json:"subscriber,omitempty"`
	ExpiresAt      time.Time         `json:"expires_at,omitzero"`
}

// Store persists emitted events. Implementations must be safe for
// concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]Event, error)
}
