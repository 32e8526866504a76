// Package domain holds the typed identifiers shared across modules.
//
// Every identity in the system is a distinct UUID-backed type so the compiler
// rejects cross-type assignment (an AccountID can never be passed where a
// SubscriptionID is expected). Parse helpers enforce the trust-boundary
// invariant that IDs are valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "subvault/pkg/domain-errors"
)

// AccountID identifies a creator account. It doubles as the registry's
// identity token: a capability is valid for exactly the account whose
// AccountID it carries.
type AccountID uuid.UUID

// SubscriptionID identifies a single subscription record.
type SubscriptionID uuid.UUID

// CapabilityID identifies a minted creator capability.
type CapabilityID uuid.UUID

// Principal is the opaque caller identity supplied by the surrounding
// harness. The core only ever compares principals for equality.
type Principal string

func (id AccountID) String() string      { return uuid.UUID(id).String() }
func (id SubscriptionID) String() string { return uuid.UUID(id).String() }
func (id CapabilityID) String() string   { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id AccountID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id SubscriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CapabilityID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders IDs in canonical UUID form so JSON payloads carry
// strings, not byte arrays.
func (id AccountID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id SubscriptionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id CapabilityID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *AccountID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = AccountID(u)
	return nil
}

func (id *SubscriptionID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = SubscriptionID(u)
	return nil
}

func (id *CapabilityID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = CapabilityID(u)
	return nil
}

// NewAccountID mints a fresh account identity.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewSubscriptionID mints a fresh subscription identity.
func NewSubscriptionID() SubscriptionID { return SubscriptionID(uuid.New()) }

// NewCapabilityID mints a fresh capability identity.
func NewCapabilityID() CapabilityID { return CapabilityID(uuid.New()) }

// ParseAccountID parses an account ID from its string form.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// ParseSubscriptionID parses a subscription ID from its string form.
func ParseSubscriptionID(s string) (SubscriptionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SubscriptionID{}, err
	}
	return SubscriptionID(u), nil
}

// ParseCapabilityID parses a capability ID from its string form.
func ParseCapabilityID(s string) (CapabilityID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CapabilityID{}, err
	}
	return CapabilityID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}
