/**
 * @description
 * PostgreSQL-backed Repository. Transfer and quote records are stored as JSONB
 * documents keyed by id, with an explicit version column for compare-and-set
 * updates. The orchestrator treats the store as a durable keyed record store,
 * so a document model keeps the persistence layer independent of the domain
 * model's shape.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pooling.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stablepath/remit-orchestrator/internal/domain"
)

// PostgresRepository implements Repository on top of a pgx connection pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a repository using the provided pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the backing tables if they do not exist yet.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transfers (
			id UUID PRIMARY KEY,
			record JSONB NOT NULL,
			version BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS quotes (
			id UUID PRIMARY KEY,
			record JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transfers_created_at ON transfers (created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_quotes_expires_at ON quotes (expires_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate store schema: %w", err)
	}
	return nil
}

// CreateTransfer inserts a new transfer record.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	record, err := json.Marshal(transfer)
	if err != nil {
		return fmt.Errorf("marshal transfer record: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO transfers (id, record, version, created_at) VALUES ($1, $2, $3, $4)`,
		transfer.ID, record, transfer.Version, transfer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer %s: %w", transfer.ID, err)
	}
	return nil
}

// GetTransfer fetches one transfer record by id.
func (r *PostgresRepository) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	var record []byte
	var version int64
	err := r.db.QueryRow(ctx,
		`SELECT record, version FROM transfers WHERE id = $1`, id,
	).Scan(&record, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("select transfer %s: %w", id, err)
	}
	var transfer domain.Transfer
	if err := json.Unmarshal(record, &transfer); err != nil {
		return nil, fmt.Errorf("unmarshal transfer %s: %w", id, err)
	}
	transfer.Version = version
	return &transfer, nil
}

// ListTransfers returns all transfer records, newest first.
func (r *PostgresRepository) ListTransfers(ctx context.Context) ([]domain.Transfer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT record, version FROM transfers ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		var record []byte
		var version int64
		if err := rows.Scan(&record, &version); err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		var transfer domain.Transfer
		if err := json.Unmarshal(record, &transfer); err != nil {
			return nil, fmt.Errorf("unmarshal transfer row: %w", err)
		}
		transfer.Version = version
		out = append(out, transfer)
	}
	return out, rows.Err()
}

// UpdateTransfer writes the record back if the caller still holds the current
// version; a zero-row update means a concurrent writer won.
func (r *PostgresRepository) UpdateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	nextVersion := transfer.Version + 1
	updated := transfer.Clone()
	updated.Version = nextVersion
	record, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal transfer record: %w", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE transfers SET record = $1, version = $2 WHERE id = $3 AND version = $4`,
		record, nextVersion, transfer.ID, transfer.Version,
	)
	if err != nil {
		return fmt.Errorf("update transfer %s: %w", transfer.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM transfers WHERE id = $1)`, transfer.ID,
		).Scan(&exists); err == nil && !exists {
			return ErrTransferNotFound
		}
		return ErrVersionConflict
	}
	transfer.Version = nextVersion
	return nil
}

// SaveQuote upserts a quote record.
func (r *PostgresRepository) SaveQuote(ctx context.Context, quote *domain.TransferQuote) error {
	record, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal quote record: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO quotes (id, record, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, expires_at = EXCLUDED.expires_at`,
		quote.ID, record, quote.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert quote %s: %w", quote.ID, err)
	}
	return nil
}

// GetQuote fetches one quote record by id.
func (r *PostgresRepository) GetQuote(ctx context.Context, id uuid.UUID) (*domain.TransferQuote, error) {
	var record []byte
	err := r.db.QueryRow(ctx, `SELECT record FROM quotes WHERE id = $1`, id).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("select quote %s: %w", id, err)
	}
	var quote domain.TransferQuote
	if err := json.Unmarshal(record, &quote); err != nil {
		return nil, fmt.Errorf("unmarshal quote %s: %w", id, err)
	}
	return &quote, nil
}

// DeleteExpiredQuotes prunes quotes whose expiry has passed.
func (r *PostgresRepository) DeleteExpiredQuotes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired quotes: %w", err)
	}
	return tag.RowsAffected(), nil
}
