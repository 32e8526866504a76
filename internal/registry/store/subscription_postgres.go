package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"subvault/internal/registry/models"
	id "subvault/pkg/domain"
	"subvault/pkg/platform/sentinel"
)

// SubscriptionSchema creates the subscriptions table. The unique constraint
// on (account_id, name) enforces per-account name uniqueness at the storage
// layer as well.
const SubscriptionSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id          UUID PRIMARY KEY,
	account_id  UUID NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL,
	content     BYTEA NOT NULL DEFAULT ''::bytea,
	created_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (account_id, name)
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_account ON subscriptions (account_id);
`

// PostgresSubscriptionStore persists subscriptions in PostgreSQL.
type PostgresSubscriptionStore struct {
	db *sql.DB
}

func NewPostgresSubscriptionStore(db *sql.DB) *PostgresSubscriptionStore {
	return &PostgresSubscriptionStore{db: db}
}

func (s *PostgresSubscriptionStore) Create(ctx context.Context, sub *models.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, account_id, name, description, price, duration_ms, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID.String(), sub.AccountID.String(), sub.Name, sub.Description,
		int64(sub.Price), sub.DurationMs, sub.Content, sub.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PostgresSubscriptionStore) FindByName(ctx context.Context, accountID id.AccountID, name string) (*models.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, description, price, duration_ms, content, created_at
		FROM subscriptions
		WHERE account_id = $1 AND name = $2`,
		accountID.String(), name,
	)
	return scanSubscription(row)
}

func (s *PostgresSubscriptionStore) UpdateContent(ctx context.Context, accountID id.AccountID, name string, content []byte) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET content = $3
		WHERE account_id = $1 AND name = $2`,
		accountID.String(), name, content,
	)
	if err != nil {
		return fmt.Errorf("update subscription content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription content: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresSubscriptionStore) Delete(ctx context.Context, accountID id.AccountID, name string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM subscriptions WHERE account_id = $1 AND name = $2`,
		accountID.String(), name,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresSubscriptionStore) List(ctx context.Context, accountID id.AccountID) ([]models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, name, description, price, duration_ms, content, created_at
		FROM subscriptions
		WHERE account_id = $1
		ORDER BY created_at, name`,
		accountID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub                 models.Subscription
		subID, accountIDStr string
		price               int64
	)
	err := row.Scan(&subID, &accountIDStr, &sub.Name, &sub.Description, &price, &sub.DurationMs, &sub.Content, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	if sub.ID, err = id.ParseSubscriptionID(subID); err != nil {
		return nil, fmt.Errorf("scan subscription id: %w", err)
	}
	if sub.AccountID, err = id.ParseAccountID(accountIDStr); err != nil {
		return nil, fmt.Errorf("scan subscription account id: %w", err)
	}
	sub.Price = uint64(price)
	return &sub, nil
}
