// Package publisher delivers registry events to a Store, synchronously or
// through a buffered background worker.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	id "subvault/pkg/domain"
	"subvault/pkg/platform/events"
)

// Publisher writes events to its store. In sync mode Emit blocks on the
// store write; with WithAsyncBuffer Emit enqueues and a single worker
// goroutine drains the buffer, preserving commit order.
type Publisher struct {
	store  events.Store
	logger *slog.Logger

	inbox  chan events.Event
	done   chan struct{}
	closed sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with the given
// buffer capacity. Emit never blocks while the buffer has room; a full
// buffer drops the event with a logged warning (fire-and-forget contract).
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan events.Event, size)
	}
}

// WithLogger sets a logger for drop/failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store events.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.run()
	}
	return p
}

// Emit delivers one event. Errors are only possible in sync mode; async mode
// is fire-and-forget.
func (p *Publisher) Emit(ctx context.Context, event events.Event) error {
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "event buffer full, dropping event",
			"kind", event.Kind,
			"account_id", event.AccountID,
		)
	}
	return nil
}

// List returns the events recorded for an account.
func (p *Publisher) List(ctx context.Context, accountID id.AccountID) ([]events.Event, error) {
	return p.store.ListByAccount(ctx, accountID)
}

// Close drains any buffered events and stops the worker. Safe to call more
// than once.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox == nil {
			close(p.done)
			return
		}
		close(p.inbox)
		<-p.done
	})
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist event",
				"kind", event.Kind,
				"account_id", event.AccountID,
				"error", err,
			)
		}
	}
}
