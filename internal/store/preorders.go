package store

import (
	"context"
	"database/sql"
	"fmt"

	"payment-reconciler/internal/models"
)

// ApplyPreorderDelta applies a quantity delta to the first preorder row
// matching any candidate product id, atomically with the capacity check and
// the idempotency ledger insert. The row lock (FOR UPDATE) serializes
// concurrent deltas so two callers can never both pass the capacity check.
//
// Returns the resulting preorder state and whether the ledger already held
// the key (in which case nothing was changed). An empty ledgerKey skips the
// ledger entirely.
func (s *Store) ApplyPreorderDelta(ctx context.Context, candidates []string, delta int, ledgerKey string) (*models.Preorder, bool, error) {
	if delta <= 0 {
		return nil, false, fmt.Errorf("delta must be positive, got %d", delta)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var preorder models.Preorder
	found := false
	for _, id := range candidates {
		err := tx.GetContext(ctx, &preorder,
			"SELECT * FROM preorders WHERE product_id = $1 FOR UPDATE", id)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to lock preorder: %w", err)
		}
		found = true
		break
	}
	if !found {
		return nil, false, models.ErrNotPreorderItem
	}

	if ledgerKey != "" {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO reconciliation_ledger (ledger_key, applied_quantity) VALUES ($1, $2) ON CONFLICT (ledger_key) DO NOTHING",
			ledgerKey, delta)
		if err != nil {
			return nil, false, fmt.Errorf("failed to claim ledger key: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, false, err
		}
		if rows == 0 {
			// Already applied; report current state unchanged.
			if err := tx.Commit(); err != nil {
				return nil, false, err
			}
			return &preorder, true, nil
		}
	}

	newQuantity := preorder.CurrentQuantity + delta
	if newQuantity > preorder.MaxQuantity {
		// Rollback discards the ledger claim too: a rejected delta was
		// never applied.
		return nil, false, fmt.Errorf("%w: current=%d, delta=%d, max=%d",
			models.ErrCapacityExceeded, preorder.CurrentQuantity, delta, preorder.MaxQuantity)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE preorders SET current_quantity = $1, updated_at = NOW() WHERE product_id = $2",
		newQuantity, preorder.ProductID); err != nil {
		return nil, false, fmt.Errorf("failed to update preorder quantity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	preorder.CurrentQuantity = newQuantity
	return &preorder, false, nil
}

// ClaimLedgerKey records a side effect as applied if no record exists yet.
// Returns true when this caller won the claim.
func (s *Store) ClaimLedgerKey(ctx context.Context, key string, quantity int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO reconciliation_ledger (ledger_key, applied_quantity) VALUES ($1, $2) ON CONFLICT (ledger_key) DO NOTHING",
		key, quantity)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
