// Package service implements the subscription registry: publishing priced,
// time-boxed subscriptions under a creator account, selling access grants,
// and gating content reads on grant validity.
//
// Every mutation validates all of its preconditions before touching any
// store, so a failed call leaves no partial state behind.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	capmodels "subvault/internal/capability/models"
	"subvault/internal/registry/metrics"
	"subvault/internal/registry/models"
	id "subvault/pkg/domain"
	dErrors "subvault/pkg/domain-errors"
	"subvault/pkg/platform/events"
	"subvault/pkg/platform/sentinel"
)

// Absent subscriptions and absent grants are reported identically so a
// non-subscriber cannot probe which subscriptions exist.
const msgSubscriptionNotFound = "subscription not found"

// SubscriptionStore persists the per-account subscription catalog.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *models.Subscription) error
	FindByName(ctx context.Context, accountID id.AccountID, name string) (*models.Subscription, error)
	UpdateContent(ctx context.Context, accountID id.AccountID, name string, content []byte) error
	Delete(ctx context.Context, accountID id.AccountID, name string) error
	List(ctx context.Context, accountID id.AccountID) ([]models.Subscription, error)
}

// GrantStore persists access grants keyed by subscription and subscriber.
type GrantStore interface {
	Upsert(ctx context.Context, accountID id.AccountID, name string, grant models.AccessGrant) error
	Find(ctx context.Context, accountID id.AccountID, name string, subscriber id.Principal) (models.AccessGrant, error)
	Delete(ctx context.Context, accountID id.AccountID, name string, subscriber id.Principal) error
	ListForSubscription(ctx context.Context, accountID id.AccountID, name string) ([]models.AccessGrant, error)
	DeleteForSubscription(ctx context.Context, accountID id.AccountID, name string) error
}

// Authority resolves published accounts and validates capability bindings.
type Authority interface {
	GetAccount(ctx context.Context, accountID id.AccountID) (*capmodels.CreatorAccount, error)
	Authorize(capability capmodels.CreatorCapability, account *capmodels.CreatorAccount) error
}

// EventPublisher receives lifecycle events after each committed mutation.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// Clock supplies the current time; injected for testability.
type Clock func() time.Time

// Service is the subscription registry.
type Service struct {
	subs      SubscriptionStore
	grants    GrantStore
	authority Authority
	events    EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     Clock
	tracer    trace.Tracer
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

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.events = publisher }
}

// New constructs a Service.
func New(subs SubscriptionStore, grants GrantStore, authority Authority, opts ...Option) *Service {
	s := &Service{
		subs:      subs,
		grants:    grants,
		authority: authority,
		logger:    slog.Default(),
		clock:     time.Now,
		tracer:    otel.Tracer("subvault/internal/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSubscriptionInput carries the caller-supplied fields of a new
// subscription. Price and duration are fixed at creation.
type CreateSubscriptionInput struct {
	Name        string
	Description string
	Price       uint64
	DurationMs  int64
	Content     []byte
}

// CreateSubscription publishes a new subscription under the account. The
// caller must present the account's capability and be the account's creator.
func (s *Service) CreateSubscription(
	ctx context.Context,
	capability capmodels.CreatorCapability,
	accountID id.AccountID,
	caller id.Principal,
	in CreateSubscriptionInput,
) (*models.Subscription, error) {
	ctx, span := s.tracer.Start(ctx, "registry.CreateSubscription",
		trace.WithAttributes(attribute.String("subscription.name", in.Name)))
	defer span.End()
	defer s.observe("create_subscription", s.clock())

	account, err := s.authorizeCreator(ctx, capability, accountID, caller)
	if err != nil {
		return nil, err
	}

	sub, err := models.NewSubscription(accountID, in.Name, in.Description, in.Price, in.DurationMs, in.Content, s.clock())
	if err != nil {
		return nil, err
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeNameConflict, "subscription name already exists under this account")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store subscription")
	}

	s.emit(ctx, events.Event{
		Kind:           events.KindCreated,
		Timestamp:      s.clock(),
		AccountID:      accountID,
		SubscriptionID: sub.ID,
		Name:           sub.Name,
		Description:    sub.Description,
		Price:          sub.Price,
		DurationMs:     sub.DurationMs,
		Creator:        account.Creator,
	})
	s.logger.InfoContext(ctx, "subscription published",
		"account_id", accountID,
		"subscription", sub.Name,
		"price", sub.Price,
		"duration_ms", sub.DurationMs,
	)
	if s.metrics != nil {
		s.metrics.SubscriptionsCreated.Inc()
	}
	return sub, nil
}

// Purchase buys access for caller, consuming payment. Payment must match the
// price exactly. A repurchase replaces any existing grant, expired or not,
// resetting expiration forward from the purchase time.
func (s *Service) Purchase(
	ctx context.Context,
	accountID id.AccountID,
	name string,
	caller id.Principal,
	payment models.Payment,
) (models.AccessGrant, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Purchase",
		trace.WithAttributes(attribute.String("subscription.name", name)))
	defer span.End()
	defer s.observe("purchase", s.clock())

	account, err := s.authority.GetAccount(ctx, accountID)
	if err != nil {
		return models.AccessGrant{}, err
	}

	sub, err := s.findSubscription(ctx, accountID, name)
	if err != nil {
		return models.AccessGrant{}, err
	}

	if !payment.Covers(sub.Price) {
		return models.AccessGrant{}, dErrors.New(dErrors.CodeInsufficientFunds, "payment does not match the subscription price")
	}

	now := s.clock()
	grant := models.NewAccessGrant(caller, sub, now)
	if err := s.grants.Upsert(ctx, accountID, name, grant); err != nil {
		return models.AccessGrant{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store access grant")
	}

	s.emit(ctx, events.Event{
		Kind:           events.KindPurchased,
		Timestamp:      now,
		AccountID:      accountID,
		SubscriptionID: sub.ID,
		Name:           sub.Name,
		Price:          sub.Price,
		DurationMs:     sub.DurationMs,
		Creator:        account.Creator,
		Subscriber:     caller,
		ExpiresAt:      grant.ExpiresAt,
	})
	s.logger.InfoContext(ctx, "subscription purchased",
		"account_id", accountID,
		"subscription", name,
		"subscriber", caller,
		"expires_at", grant.ExpiresAt,
	)
	if s.metrics != nil {
		s.metrics.Purchases.Inc()
	}
	return grant, nil
}

// AccessContent returns a copy of the subscription's content if caller holds
// an unexpired grant. Expiration is decided lazily against the current clock;
// nothing is mutated on any path.
func (s *Service) AccessContent(
	ctx context.Context,
	accountID id.AccountID,
	name string,
	caller id.Principal,
) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "registry.AccessContent",
		trace.WithAttributes(attribute.String("subscription.name", name)))
	defer span.End()
	defer s.observe("access_content", s.clock())

	if _, err := s.authority.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	sub, err := s.findSubscription(ctx, accountID, name)
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.metrics.IncrementAccessDenied("not_found")
		}
		return nil, err
	}

	grant, err := s.grants.Find(ctx, accountID, name, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			if s.metrics != nil {
				s.metrics.IncrementAccessDenied("not_found")
			}
			return nil, dErrors.New(dErrors.CodeNotFound, msgSubscriptionNotFound)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access grant")
	}

	if grant.ExpiredAt(s.clock()) {
		if s.metrics != nil {
			s.metrics.IncrementAccessDenied("expired")
		}
		return nil, dErrors.New(dErrors.CodeExpired, "access grant has expired")
	}

	if s.metrics != nil {
		s.metrics.ContentReads.Inc()
	}
	return append([]byte(nil), sub.Content...), nil
}

// UpdateContent replaces a subscription's content blob. Name, price and
// duration never change; existing grants are unaffected.
func (s *Service) UpdateContent(
	ctx context.Context,
	capability capmodels.CreatorCapability,
	accountID id.AccountID,
	name string,
	caller id.Principal,
	content []byte,
) error {
	ctx, span := s.tracer.Start(ctx, "registry.UpdateContent",
		trace.WithAttributes(attribute.String("subscription.name", name)))
	defer span.End()
	defer s.observe("update_content", s.clock())

	if _, err := s.authorizeCreator(ctx, capability, accountID, caller); err != nil {
		return err
	}

	if err := s.subs.UpdateContent(ctx, accountID, name, content); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, msgSubscriptionNotFound)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update subscription content")
	}

	s.logger.InfoContext(ctx, "subscription content updated",
		"account_id", accountID,
		"subscription", name,
	)
	return nil
}

// CancelSubscription removes the subscription and every grant under it in one
// administrative step. Each live grant holder gets a cancellation event.
func (s *Service) CancelSubscription(
	ctx context.Context,
	capability capmodels.CreatorCapability,
	accountID id.AccountID,
	name string,
	caller id.Principal,
) error {
	ctx, span := s.tracer.Start(ctx, "registry.CancelSubscription",
		trace.WithAttributes(attribute.String("subscription.name", name)))
	defer span.End()
	defer s.observe("cancel_subscription", s.clock())

	account, err := s.authorizeCreator(ctx, capability, accountID, caller)
	if err != nil {
		return err
	}

	sub, err := s.findSubscription(ctx, accountID, name)
	if err != nil {
		return err
	}

	grants, err := s.grants.ListForSubscription(ctx, accountID, name)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list access grants")
	}

	if err := s.subs.Delete(ctx, accountID, name); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, msgSubscriptionNotFound)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete subscription")
	}
	if err := s.grants.DeleteForSubscription(ctx, accountID, name); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete access grants")
	}

	now := s.clock()
	for _, grant := range grants {
		s.emit(ctx, events.Event{
			Kind:           events.KindCancelled,
			Timestamp:      now,
			AccountID:      accountID,
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			Creator:        account.Creator,
			Subscriber:     grant.Subscriber,
		})
	}
	s.logger.InfoContext(ctx, "subscription cancelled",
		"account_id", accountID,
		"subscription", name,
		"revoked_grants", len(grants),
	)
	if s.metrics != nil {
		s.metrics.Cancellations.Inc()
	}
	return nil
}

// Unsubscribe revokes caller's own grant. Requires the grant to still be
// valid; an expired grant cannot be handed back.
func (s *Service) Unsubscribe(
	ctx context.Context,
	accountID id.AccountID,
	name string,
	caller id.Principal,
) error {
	ctx, span := s.tracer.Start(ctx, "registry.Unsubscribe",
		trace.WithAttributes(attribute.String("subscription.name", name)))
	defer span.End()
	defer s.observe("unsubscribe", s.clock())

	account, err := s.authority.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	sub, err := s.findSubscription(ctx, accountID, name)
	if err != nil {
		return err
	}

	grant, err := s.grants.Find(ctx, accountID, name, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, msgSubscriptionNotFound)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load access grant")
	}
	if grant.ExpiredAt(s.clock()) {
		return dErrors.New(dErrors.CodeExpired, "access grant has expired")
	}

	if err := s.grants.Delete(ctx, accountID, name, caller); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete access grant")
	}

	s.emit(ctx, events.Event{
		Kind:           events.KindCancelled,
		Timestamp:      s.clock(),
		AccountID:      accountID,
		SubscriptionID: sub.ID,
		Name:           sub.Name,
		Creator:        account.Creator,
		Subscriber:     caller,
	})
	s.logger.InfoContext(ctx, "subscriber unsubscribed",
		"account_id", accountID,
		"subscription", name,
		"subscriber", caller,
	)
	if s.metrics != nil {
		s.metrics.Unsubscribes.Inc()
	}
	return nil
}

// ListSubscriptions returns the account's catalog. Open to anyone; callers
// receive metadata only, content stays behind AccessContent.
func (s *Service) ListSubscriptions(ctx context.Context, accountID id.AccountID) ([]models.Subscription, error) {
	ctx, span := s.tracer.Start(ctx, "registry.ListSubscriptions")
	defer span.End()

	if _, err := s.authority.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	subs, err := s.subs.List(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subscriptions")
	}
	return subs, nil
}

// authorizeCreator runs the full privileged-call preamble: resolve the
// account, check the capability binding, then re-check caller identity.
func (s *Service) authorizeCreator(
	ctx context.Context,
	capability capmodels.CreatorCapability,
	accountID id.AccountID,
	caller id.Principal,
) (*capmodels.CreatorAccount, error) {
	account, err := s.authority.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.authority.Authorize(capability, account); err != nil {
		return nil, err
	}
	if !account.IsOwnedBy(caller) {
		return nil, dErrors.New(dErrors.CodeWrongCreator, "caller is not the account's creator")
	}
	return account, nil
}

func (s *Service) findSubscription(ctx context.Context, accountID id.AccountID, name string) (*models.Subscription, error) {
	sub, err := s.subs.FindByName(ctx, accountID, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, msgSubscriptionNotFound)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subscription")
	}
	return sub, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event emission failed", "kind", event.Kind, "error", err)
	}
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, s.clock().Sub(start))
	}
}
