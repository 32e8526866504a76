package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"subvault/internal/capability/models"
	id "subvault/pkg/domain"
	"subvault/pkg/platform/sentinel"
)

// Postgres persists creator accounts in PostgreSQL for multi-instance
// deployments.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema is the DDL the store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS creator_accounts (
    id         UUID PRIMARY KEY,
    creator    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
`

func (s *Postgres) Create(ctx context.Context, account *models.CreatorAccount) error {
	const query = `
		INSERT INTO creator_accounts (id, creator, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(account.ID),
		string(account.Creator),
		account.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, accountID id.AccountID) (*models.CreatorAccount, error) {
	const query = `SELECT id, creator, created_at FROM creator_accounts WHERE id = $1`

	var (
		rawID   uuid.UUID
		creator string
		account models.CreatorAccount
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(accountID)).
		Scan(&rawID, &creator, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	account.ID = id.AccountID(rawID)
	account.Creator = id.Principal(creator)
	return &account, nil
}
