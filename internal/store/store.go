package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payment-reconciler/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetPreorder retrieves a preorder row by its exact product id.
func (s *Store) GetPreorder(ctx context.Context, productID string) (*models.Preorder, error) {
	var p models.Preorder
	err := s.db.GetContext(ctx, &p, "SELECT * FROM preorders WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotPreorderItem
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPreorder retrieves the first preorder row matching any candidate
// product id, in candidate order.
func (s *Store) FindPreorder(ctx context.Context, candidates []string) (*models.Preorder, error) {
	for _, id := range candidates {
		p, err := s.GetPreorder(ctx, id)
		if err == models.ErrNotPreorderItem {
			continue
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, models.ErrNotPreorderItem
}

// UpsertPreorder creates or replaces a preorder row (admin/seed path).
func (s *Store) UpsertPreorder(ctx context.Context, p *models.Preorder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preorders (product_id, release_date, current_quantity, max_quantity, is_preorder, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (product_id) DO UPDATE
		SET release_date = EXCLUDED.release_date,
		    current_quantity = EXCLUDED.current_quantity,
		    max_quantity = EXCLUDED.max_quantity,
		    is_preorder = EXCLUDED.is_preorder,
		    updated_at = NOW()`,
		p.ProductID, p.ReleaseDate, p.CurrentQuantity, p.MaxQuantity, p.IsPreorder)
	return err
}

// GetIdempotencyRecord retrieves a ledger record by key, nil if absent.
func (s *Store) GetIdempotencyRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT ledger_key, applied_quantity, applied_at FROM reconciliation_ledger WHERE ledger_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertWebhookAudit persists one webhook audit record. Best-effort from the
// gateway's point of view; the caller logs failures and moves on.
func (s *Store) InsertWebhookAudit(ctx context.Context, rec *models.WebhookAuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_audit (id, event_id, event_type, outcome, status_code, duration_ms, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.EventID, rec.EventType, rec.Outcome, rec.StatusCode, rec.DurationMS, rec.ReceivedAt)
	return err
}
