package webhook

import (
	"context"
	"fmt"

	"payment-reconciler/internal/models"
	"payment-reconciler/internal/service"
	"payment-reconciler/internal/util"

	"go.uber.org/zap"
)

// Reconciler applies the post-payment side effects for an order.
// *service.OrderReconciler implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, order *models.Order, paymentID string)
}

// HandlerFunc processes one decoded event.
type HandlerFunc func(ctx context.Context, event *models.WebhookEvent) error

// EventDispatcher maps event types to handlers. The table is fixed at
// construction; a missing entry is a silent no-op because the gateway has
// already acknowledged unsupported types.
type EventDispatcher struct {
	provider   service.CatalogProvider
	reconciler Reconciler
	handlers   map[string]HandlerFunc
	logger     *zap.Logger
}

// NewEventDispatcher creates a dispatcher wired to the shared reconciler.
func NewEventDispatcher(provider service.CatalogProvider, reconciler Reconciler) *EventDispatcher {
	d := &EventDispatcher{
		provider:   provider,
		reconciler: reconciler,
		logger:     util.GetLogger(),
	}
	d.handlers = map[string]HandlerFunc{
		models.EventTypeOrderUpdated:          d.handleOrderUpdated,
		models.EventTypePaymentUpdated:        d.handlePaymentUpdated,
		models.EventTypeInventoryCountUpdated: d.handleInventoryCountUpdated,
		models.EventTypeCustomerUpdated:       d.handleCustomerUpdated,
	}
	return d
}

// Dispatch routes the event to its handler. Errors propagate so the gateway
// can answer 500 and let the processor redeliver; handlers are idempotent,
// which is what makes that retry safe.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *models.WebhookEvent) error {
	handler, ok := d.handlers[event.Type]
	if !ok {
		return nil
	}
	return handler(ctx, event)
}

func (d *EventDispatcher) handleOrderUpdated(ctx context.Context, event *models.WebhookEvent) error {
	obj, err := event.DecodeObject()
	if err != nil {
		return err
	}
	payload, ok := obj.(models.OrderPayload)
	if !ok {
		return fmt.Errorf("event %s: expected order payload, got %T", event.ID, obj)
	}

	if payload.State != models.OrderStateCompleted {
		d.logger.Info("Order update requires no reconciliation",
			zap.String("order_id", payload.ID),
			zap.String("state", payload.State))
		return nil
	}

	order, err := d.provider.RetrieveOrder(ctx, payload.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch order %s: %w", payload.ID, err)
	}

	paymentID := ""
	if len(payload.PaymentIDs) > 0 {
		paymentID = payload.PaymentIDs[len(payload.PaymentIDs)-1]
	}
	d.reconciler.Reconcile(ctx, order, paymentID)
	return nil
}

func (d *EventDispatcher) handlePaymentUpdated(ctx context.Context, event *models.WebhookEvent) error {
	obj, err := event.DecodeObject()
	if err != nil {
		return err
	}
	payload, ok := obj.(models.PaymentPayload)
	if !ok {
		return fmt.Errorf("event %s: expected payment payload, got %T", event.ID, obj)
	}

	if payload.Status != models.PaymentStatusCompleted || payload.OrderID == "" {
		d.logger.Info("Payment update requires no reconciliation",
			zap.String("payment_id", payload.ID),
			zap.String("status", payload.Status))
		return nil
	}

	order, err := d.provider.RetrieveOrder(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("failed to fetch order %s: %w", payload.OrderID, err)
	}

	d.reconciler.Reconcile(ctx, order, payload.ID)
	return nil
}

func (d *EventDispatcher) handleInventoryCountUpdated(ctx context.Context, event *models.WebhookEvent) error {
	obj, err := event.DecodeObject()
	if err != nil {
		return err
	}
	payload, ok := obj.(models.InventoryCountPayload)
	if !ok {
		return fmt.Errorf("event %s: expected inventory payload, got %T", event.ID, obj)
	}

	// Informational: the provider owns inventory counts, this side only
	// observes them.
	d.logger.Info("Provider inventory count updated",
		zap.String("catalog_object_id", payload.CatalogObjectID),
		zap.String("state", payload.State),
		zap.Int("quantity", payload.Quantity))
	return nil
}

func (d *EventDispatcher) handleCustomerUpdated(ctx context.Context, event *models.WebhookEvent) error {
	obj, err := event.DecodeObject()
	if err != nil {
		return err
	}
	payload, ok := obj.(models.CustomerPayload)
	if !ok {
		return fmt.Errorf("event %s: expected customer payload, got %T", event.ID, obj)
	}

	d.logger.Info("Customer updated",
		zap.String("customer_id", payload.ID))
	return nil
}
