package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"payment-reconciler/internal/models"
	"payment-reconciler/internal/util"

	"go.uber.org/zap"
)

// ReconciliationStore is the durable state both reconciliation paths share:
// preorder counters plus the idempotency ledger. *store.Store implements it.
type ReconciliationStore interface {
	ApplyPreorderDelta(ctx context.Context, candidates []string, delta int, ledgerKey string) (*models.Preorder, bool, error)
	ClaimLedgerKey(ctx context.Context, key string, quantity int) (bool, error)
	FindPreorder(ctx context.Context, candidates []string) (*models.Preorder, error)
}

// PreorderReconciler enforces the bounded preorder counter. The capacity
// check and the ledger insert happen in one storage transaction; the
// reconciler adds product-id resolution, validation and observability.
type PreorderReconciler struct {
	store  ReconciliationStore
	logger *zap.Logger
}

// NewPreorderReconciler creates a new preorder reconciler
func NewPreorderReconciler(store ReconciliationStore) *PreorderReconciler {
	return &PreorderReconciler{
		store:  store,
		logger: util.GetLogger(),
	}
}

// PreorderState is the result of one delta application.
type PreorderState struct {
	Preorder       *models.Preorder
	AlreadyApplied bool
}

// ApplyDelta applies a positive quantity delta against the preorder for
// productID. A non-empty ledgerKey makes the call idempotent: the second
// application of the same key returns the current state with AlreadyApplied
// set instead of mutating anything.
func (r *PreorderReconciler) ApplyDelta(ctx context.Context, productID string, delta int, ledgerKey string) (*PreorderState, error) {
	ctx, span := util.StartSpan(ctx, "PreorderReconciler.ApplyDelta")
	defer span.End()

	if delta <= 0 {
		return nil, fmt.Errorf("preorder delta must be positive, got %d", delta)
	}
	if productID == "" {
		return nil, models.ErrNotPreorderItem
	}

	preorder, alreadyApplied, err := r.store.ApplyPreorderDelta(ctx, candidateProductIDs(productID), delta, ledgerKey)
	if err != nil {
		if errors.Is(err, models.ErrCapacityExceeded) {
			util.PreorderCapacityRejections.Inc()
			r.logger.Warn("Preorder delta rejected: capacity exceeded",
				zap.String("product_id", productID),
				zap.Int("delta", delta))
		}
		return nil, err
	}

	if alreadyApplied {
		util.PreorderDeltasDeduped.Inc()
		r.logger.Info("Preorder delta already applied",
			zap.String("product_id", preorder.ProductID),
			zap.String("ledger_key", ledgerKey))
		return &PreorderState{Preorder: preorder, AlreadyApplied: true}, nil
	}

	util.PreorderDeltasApplied.Inc()
	r.logger.Info("Preorder delta applied",
		zap.String("product_id", preorder.ProductID),
		zap.Int("delta", delta),
		zap.Int("current_quantity", preorder.CurrentQuantity),
		zap.Int("max_quantity", preorder.MaxQuantity))

	return &PreorderState{Preorder: preorder}, nil
}

// Lookup fetches the preorder for a product id, trying the same candidate
// forms ApplyDelta does.
func (r *PreorderReconciler) Lookup(ctx context.Context, productID string) (*models.Preorder, error) {
	if productID == "" {
		return nil, models.ErrNotPreorderItem
	}
	return r.store.FindPreorder(ctx, candidateProductIDs(productID))
}

const productIDPrefix = "product:"

// candidateProductIDs returns the surface forms a preorder row may be keyed
// under: older rows use the prefixed local id, newer rows the raw catalog id.
func candidateProductIDs(id string) []string {
	if strings.HasPrefix(id, productIDPrefix) {
		return []string{id, strings.TrimPrefix(id, productIDPrefix)}
	}
	return []string{id, productIDPrefix + id}
}
