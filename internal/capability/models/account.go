package models

import (
	"time"

	id "subvault/pkg/domain"
	dErrors "subvault/pkg/domain-errors"
)

// CreatorAccount is the aggregate root for one creator's registry.
//
// Invariants:
//   - Creator is non-empty and immutable after construction
//   - ID doubles as the registry's identity token: it is the value a
//     capability must carry to authorize mutations
//   - Accounts are never deleted through the public surface; they exist for
//     the life of the registry
//
// The account is published (discoverable by anyone for purchase and read
// operations); authority over it travels only with the capability.
type CreatorAccount struct {
	ID        id.AccountID `json:"id"`
	Creator   id.Principal `json:"creator"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewCreatorAccount mints an account owned by caller.
func NewCreatorAccount(caller id.Principal, now time.Time) (*CreatorAccount, error) {
	if caller == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "creator principal cannot be empty")
	}
	return &CreatorAccount{
		ID:        id.NewAccountID(),
		Creator:   caller,
		CreatedAt: now,
	}, nil
}

// IsOwnedBy reports whether caller is the account's creator. Creator-only
// operations re-check this even when a capability already proved authority.
func (a *CreatorAccount) IsOwnedBy(caller id.Principal) bool {
	return a.Creator == caller
}

// CreatorCapability is the unforgeable authorization token for exactly one
// account: a tagged pair {ID, AccountID} with no ambient authority and no
// server-side registry of valid capabilities. In process, unforgeability is
// value possession; over the wire it is an HMAC signature (internal/jwttoken).
type CreatorCapability struct {
	ID        id.CapabilityID `json:"id"`
	AccountID id.AccountID    `json:"account_id"`
}

// MintCapability creates the one capability bound to the given account.
// Called exactly once, at account creation.
func MintCapability(account *CreatorAccount) CreatorCapability {
	return CreatorCapability{
		ID:        id.NewCapabilityID(),
		AccountID: account.ID,
	}
}

// Authorizes reports whether the capability is bound to the given account.
func (c CreatorCapability) Authorizes(account *CreatorAccount) bool {
	return account != nil && c.AccountID == account.ID && !c.AccountID.IsNil()
}
