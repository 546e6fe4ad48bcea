package service

import (
	"context"
	"fmt"
	"time"

	"payment-reconciler/internal/models"
	"payment-reconciler/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogProvider is the narrow contract to the external catalog/payments
// system. *provider.Client implements it.
type CatalogProvider interface {
	RetrieveOrder(ctx context.Context, orderID string) (*models.Order, error)
	CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.Payment, error)
	BatchChangeInventory(ctx context.Context, token string, adjustments []models.InventoryAdjustment) error
	SearchCustomerByEmail(ctx context.Context, email string) (string, error)
	CreateCustomer(ctx context.Context, email string) (string, error)
}

// InventoryAdjuster finalizes stock for a paid order: one IN_STOCK -> SOLD
// transition per physical line item, submitted as a single provider batch.
type InventoryAdjuster struct {
	provider   CatalogProvider
	locationID string
	logger     *zap.Logger
}

// NewInventoryAdjuster creates a new inventory adjuster
func NewInventoryAdjuster(provider CatalogProvider, locationID string) *InventoryAdjuster {
	return &InventoryAdjuster{
		provider:   provider,
		locationID: locationID,
		logger:     util.GetLogger(),
	}
}

// Finalize submits the sold-state transitions for every resolvable line
// item. The batch is keyed by a fresh token: it only dedupes resubmission of
// this one call, cross-call duplication is the ledger's job.
func (a *InventoryAdjuster) Finalize(ctx context.Context, order *models.Order, paymentID string) error {
	ctx, span := util.StartSpan(ctx, "InventoryAdjuster.Finalize")
	defer span.End()

	adjustments := a.buildAdjustments(order, paymentID)
	if len(adjustments) == 0 {
		a.logger.Info("No adjustable line items on order", zap.String("order_id", order.ID))
		return nil
	}

	token := uuid.New().String()
	if err := a.provider.BatchChangeInventory(ctx, token, adjustments); err != nil {
		util.InventoryBatchesFailed.Inc()
		return fmt.Errorf("inventory batch for order %s: %w", order.ID, err)
	}

	util.InventoryBatchesSubmitted.Inc()
	a.logger.Info("Inventory finalized",
		zap.String("order_id", order.ID),
		zap.String("payment_id", paymentID),
		zap.Int("adjustments", len(adjustments)))
	return nil
}

func (a *InventoryAdjuster) buildAdjustments(order *models.Order, paymentID string) []models.InventoryAdjustment {
	now := time.Now().UTC()
	adjustments := make([]models.InventoryAdjustment, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		if item.CatalogObjectID == "" || item.Quantity <= 0 {
			continue
		}
		adjustments = append(adjustments, models.InventoryAdjustment{
			CatalogObjectID: item.CatalogObjectID,
			LocationID:      a.locationID,
			FromState:       models.InventoryStateInStock,
			ToState:         models.InventoryStateSold,
			Quantity:        item.Quantity,
			OccurredAt:      now,
			Reason:          fmt.Sprintf("order %s payment %s", order.ID, paymentID),
		})
	}
	return adjustments
}
