// Package postgres stores moderated quotes in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/storage"
)

//go:embed schema.sql
var schema string

// QuoteStore handles quote database operations
type QuoteStore struct {
	db *pgxpool.Pool
}

// Connect opens a pool against dsn and applies the schema
func Connect(ctx context.Context, dsn string) (*QuoteStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := NewQuoteStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewQuoteStore creates a quote store over an existing pool
func NewQuoteStore(db *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{db: db}
}

var _ storage.QuoteStore = (*QuoteStore)(nil)

// Migrate creates the quotes table if it does not exist
func (r *QuoteStore) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply quote schema: %w", err)
	}
	return nil
}

// Close releases the pool
func (r *QuoteStore) Close() {
	r.db.Close()
}

// SaveQuote inserts a quote or replaces the stored version
func (r *QuoteStore) SaveQuote(ctx context.Context, q *model.Quote) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO quotes (id, content, submitted_by, category, is_own_quote, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			submitted_by = EXCLUDED.submitted_by,
			category = EXCLUDED.category,
			is_own_quote = EXCLUDED.is_own_quote,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at
	`, string(q.ID), q.Content, q.SubmittedBy, string(q.Category), q.IsOwnQuote, string(q.Status), q.Timestamp)
	return err
}

// GetQuote returns a quote by id
func (r *QuoteStore) GetQuote(ctx context.Context, id model.QuoteID) (*model.Quote, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, content, submitted_by, category, is_own_quote, status, created_at
		FROM quotes
		WHERE id = $1
	`, string(id))

	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrQuoteNotFound
		}
		return nil, err
	}
	return q, nil
}

// ListQuotes returns matching quotes newest first
func (r *QuoteStore) ListQuotes(ctx context.Context, filter model.QuoteFilter) ([]*model.Quote, error) {
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, content, submitted_by, category, is_own_quote, status, created_at
		FROM quotes
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR category = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, string(filter.Status), string(filter.Category), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []*model.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// DeleteQuote removes a single quote
func (r *QuoteStore) DeleteQuote(ctx context.Context, id model.QuoteID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrQuoteNotFound
	}
	return nil
}

// DeleteQuotes removes every id or, if any is missing, none of them
func (r *QuoteStore) DeleteQuotes(ctx context.Context, ids []model.QuoteID) error {
	unique := make([]string, 0, len(ids))
	seen := make(map[model.QuoteID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, string(id))
	}
	if len(unique) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM quotes WHERE id = ANY($1)`, unique)
	if err != nil {
		return err
	}
	if int(tag.RowsAffected()) != len(unique) {
		return model.ErrQuoteNotFound
	}
	return tx.Commit(ctx)
}

// CountQuotes returns per-status counts
func (r *QuoteStore) CountQuotes(ctx context.Context) (model.QuoteStats, error) {
	var stats model.QuoteStats
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM quotes GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		switch model.QuoteStatus(status) {
		case model.QuoteStatusPending:
			stats.Pending = n
		case model.QuoteStatusApproved:
			stats.Approved = n
		case model.QuoteStatusRejected:
			stats.Rejected = n
		}
	}
	return stats, rows.Err()
}

func scanQuote(row pgx.Row) (*model.Quote, error) {
	var (
		q                    model.Quote
		id, category, status string
	)
	if err := row.Scan(&id, &q.Content, &q.SubmittedBy, &category, &q.IsOwnQuote, &status, &q.Timestamp); err != nil {
		return nil, err
	}
	q.ID = model.QuoteID(id)
	q.Category = model.QuoteCategory(category)
	q.Status = model.QuoteStatus(status)
	q.Timestamp = q.Timestamp.UTC()
	return &q, nil
}
