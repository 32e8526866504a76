// Package service implements the capability authority: it mints creator
// accounts with their one bound capability and validates capability
// presentations before any privileged registry operation runs.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"subvault/internal/capability/metrics"
	"subvault/internal/capability/models"
	id "subvault/pkg/domain"
	dErrors "subvault/pkg/domain-errors"
	"subvault/pkg/platform/sentinel"
)

// AccountStore persists published creator accounts.
type AccountStore interface {
	Create(ctx context.Context, account *models.CreatorAccount) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.CreatorAccount, error)
}

// Clock supplies the current time; injected for testability.
type Clock func() time.Time

// Service is the capability authority.
type Service struct {
	accounts AccountStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    Clock
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a Service.
func New(accounts AccountStore, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCreator allocates a fresh account bound to caller and mints the one
// capability that authorizes it. The account is published through the store;
// the capability is returned only to the caller and never persisted.
func (s *Service) CreateCreator(ctx context.Context, caller id.Principal) (*models.CreatorAccount, models.CreatorCapability, error) {
	account, err := models.NewCreatorAccount(caller, s.clock())
	if err != nil {
		return nil, models.CreatorCapability{}, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, models.CreatorCapability{}, dErrors.New(dErrors.CodeConflict, "account identity already taken")
		}
		return nil, models.CreatorCapability{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	capability := models.MintCapability(account)

	s.logger.InfoContext(ctx, "creator account minted",
		"account_id", account.ID,
	)
	if s.metrics != nil {
		s.metrics.IncrementCreatorsCreated()
	}
	return account, capability, nil
}

// GetAccount resolves a published account by identity.
func (s *Service) GetAccount(ctx context.Context, accountID id.AccountID) (*models.CreatorAccount, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

// Authorize succeeds iff the capability's bound identity equals the target
// account's identity. Pure equality check: no store lookup, no side effects
// beyond metrics.
func (s *Service) Authorize(capability models.CreatorCapability, account *models.CreatorAccount) error {
	if !capability.Authorizes(account) {
		if s.metrics != nil {
			s.metrics.IncrementAuthorizeFailures()
		}
		return dErrors.New(dErrors.CodeInvalidCapability, "capability is not bound to this account")
	}
	return nil
}
