package service

import (
	"context"
	"errors"
	"time"

	"payment-reconciler/internal/models"
	"payment-reconciler/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResyncQueue accepts failed inventory finalizations for later retry.
// *broker.ResyncPublisher implements it.
type ResyncQueue interface {
	PublishInventoryResync(ctx context.Context, event *models.InventoryResyncEvent) error
}

// OrderReconciler is the single reconciliation function both entry points
// share: the webhook dispatcher and the synchronous checkout path. Whichever
// invocation reaches the ledger first applies the side effects; the other
// observes AlreadyApplied. Correctness comes from the ledger's uniqueness
// constraint, not from locking.
type OrderReconciler struct {
	store     ReconciliationStore
	inventory *InventoryAdjuster
	preorders *PreorderReconciler
	resync    ResyncQueue
	logger    *zap.Logger
}

// NewOrderReconciler creates a new order reconciler. resync may be nil when
// no retry queue is configured.
func NewOrderReconciler(
	store ReconciliationStore,
	inventory *InventoryAdjuster,
	preorders *PreorderReconciler,
	resync ResyncQueue,
) *OrderReconciler {
	return &OrderReconciler{
		store:     store,
		inventory: inventory,
		preorders: preorders,
		resync:    resync,
		logger:    util.GetLogger(),
	}
}

// Reconcile applies the post-payment side effects for an order: inventory
// finalization guarded by the ledger, then one preorder delta per line item.
// Individual failures are logged and tolerated; by the time this runs the
// money has already moved, so stock bookkeeping is repaired out of band
// rather than rolled back.
func (r *OrderReconciler) Reconcile(ctx context.Context, order *models.Order, paymentID string) {
	ctx, span := util.StartSpan(ctx, "OrderReconciler.Reconcile")
	defer span.End()

	r.finalizeInventory(ctx, order, paymentID)

	for _, item := range order.LineItems {
		if item.CatalogObjectID == "" || item.Quantity <= 0 {
			continue
		}

		key := models.PreorderLedgerKey(order.ID, item.CatalogObjectID)
		state, err := r.preorders.ApplyDelta(ctx, item.CatalogObjectID, item.Quantity, key)
		if errors.Is(err, models.ErrNotPreorderItem) {
			continue
		}
		if err != nil {
			r.logger.Error("Preorder reconciliation failed for line item",
				zap.String("order_id", order.ID),
				zap.String("catalog_object_id", item.CatalogObjectID),
				zap.Error(err))
			continue
		}
		if state.AlreadyApplied {
			r.logger.Info("Preorder delta already applied by the other path",
				zap.String("order_id", order.ID),
				zap.String("catalog_object_id", item.CatalogObjectID))
		}
	}
}

func (r *OrderReconciler) finalizeInventory(ctx context.Context, order *models.Order, paymentID string) {
	totalQuantity := 0
	for _, item := range order.LineItems {
		totalQuantity += item.Quantity
	}

	claimed, err := r.store.ClaimLedgerKey(ctx, models.InventoryLedgerKey(order.ID), totalQuantity)
	if err != nil {
		// Leaving the key unclaimed keeps the finalization retryable on
		// the next delivery.
		r.logger.Error("Failed to claim inventory ledger key",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return
	}
	if !claimed {
		r.logger.Info("Inventory already finalized for order",
			zap.String("order_id", order.ID))
		return
	}

	if err := r.inventory.Finalize(ctx, order, paymentID); err != nil {
		r.logger.Error("Inventory finalization failed",
			zap.String("order_id", order.ID),
			zap.String("payment_id", paymentID),
			zap.Error(err))
		r.queueResync(ctx, order.ID, paymentID, err)
	}
}

func (r *OrderReconciler) queueResync(ctx context.Context, orderID, paymentID string, cause error) {
	if r.resync == nil {
		return
	}
	event := &models.InventoryResyncEvent{
		EventID:   uuid.New().String(),
		OrderID:   orderID,
		PaymentID: paymentID,
		Attempt:   1,
		LastError: cause.Error(),
		Timestamp: time.Now(),
	}
	if err := r.resync.PublishInventoryResync(ctx, event); err != nil {
		r.logger.Error("Failed to queue inventory resync",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}
