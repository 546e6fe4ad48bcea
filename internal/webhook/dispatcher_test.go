package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"payment-reconciler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves orders to the dispatcher.
type fakeProvider struct {
	mu       sync.Mutex
	orders   map[string]*models.Order
	orderErr error
	batches  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{orders: make(map[string]*models.Order)}
}

func (f *fakeProvider) RetrieveOrder(ctx context.Context, orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, orderID)
	}
	cp := *order
	return &cp, nil
}

func (f *fakeProvider) CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.Payment, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeProvider) BatchChangeInventory(ctx context.Context, token string, adjustments []models.InventoryAdjustment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	return nil
}

func (f *fakeProvider) SearchCustomerByEmail(ctx context.Context, email string) (string, error) {
	return "", nil
}

func (f *fakeProvider) CreateCustomer(ctx context.Context, email string) (string, error) {
	return "", nil
}

// countingReconciler records reconcile invocations.
type countingReconciler struct {
	mu         sync.Mutex
	calls      int
	orderIDs   []string
	paymentIDs []string
}

func (r *countingReconciler) Reconcile(ctx context.Context, order *models.Order, paymentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.orderIDs = append(r.orderIDs, order.ID)
	r.paymentIDs = append(r.paymentIDs, paymentID)
}

func mustEvent(t *testing.T, eventType, dataType, dataID string, object interface{}) *models.WebhookEvent {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &models.WebhookEvent{
		ID:         "evt-1",
		Type:       eventType,
		MerchantID: "merch-1",
		Data: models.WebhookData{
			Type:   dataType,
			ID:     dataID,
			Object: raw,
		},
	}
}

func TestDispatchCompletedPaymentTriggersReconciliation(t *testing.T) {
	provider := newFakeProvider()
	provider.orders["order-1"] = &models.Order{ID: "order-1", State: models.OrderStateCompleted}
	reconciler := &countingReconciler{}
	d := NewEventDispatcher(provider, reconciler)

	event := mustEvent(t, models.EventTypePaymentUpdated, "payment", "pay-1", models.PaymentPayload{
		ID:      "pay-1",
		OrderID: "order-1",
		Status:  models.PaymentStatusCompleted,
	})

	require.NoError(t, d.Dispatch(context.Background(), event))
	assert.Equal(t, 1, reconciler.calls)
	assert.Equal(t, []string{"order-1"}, reconciler.orderIDs)
	assert.Equal(t, []string{"pay-1"}, reconciler.paymentIDs)
}

func TestDispatchPendingPaymentIsNoOp(t *testing.T) {
	reconciler := &countingReconciler{}
	d := NewEventDispatcher(newFakeProvider(), reconciler)

	event := mustEvent(t, models.EventTypePaymentUpdated, "payment", "pay-1", models.PaymentPayload{
		ID:      "pay-1",
		OrderID: "order-1",
		Status:  models.PaymentStatusPending,
	})

	require.NoError(t, d.Dispatch(context.Background(), event))
	assert.Zero(t, reconciler.calls)
}

func TestDispatchCompletedOrderTriggersReconciliation(t *testing.T) {
	provider := newFakeProvider()
	provider.orders["order-1"] = &models.Order{ID: "order-1", State: models.OrderStateCompleted}
	reconciler := &countingReconciler{}
	d := NewEventDispatcher(provider, reconciler)

	event := mustEvent(t, models.EventTypeOrderUpdated, "order", "order-1", models.OrderPayload{
		ID:         "order-1",
		State:      models.OrderStateCompleted,
		PaymentIDs: []string{"pay-7"},
	})

	require.NoError(t, d.Dispatch(context.Background(), event))
	assert.Equal(t, 1, reconciler.calls)
	assert.Equal(t, []string{"pay-7"}, reconciler.paymentIDs)
}

func TestDispatchOrderFetchFailurePropagates(t *testing.T) {
	provider := newFakeProvider()
	provider.orderErr = models.ErrProviderUnavailable
	reconciler := &countingReconciler{}
	d := NewEventDispatcher(provider, reconciler)

	event := mustEvent(t, models.EventTypePaymentUpdated, "payment", "pay-1", models.PaymentPayload{
		ID:      "pay-1",
		OrderID: "order-1",
		Status:  models.PaymentStatusCompleted,
	})

	// Propagated so the gateway answers 500 and the processor redelivers.
	err := d.Dispatch(context.Background(), event)
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
	assert.Zero(t, reconciler.calls)
}

func TestDispatchUnknownTypeIsSilentNoOp(t *testing.T) {
	reconciler := &countingReconciler{}
	d := NewEventDispatcher(newFakeProvider(), reconciler)

	event := mustEvent(t, "refund.updated", "refund", "ref-1", map[string]string{"id": "ref-1"})
	require.NoError(t, d.Dispatch(context.Background(), event))
	assert.Zero(t, reconciler.calls)
}

func TestDispatchInformationalEvents(t *testing.T) {
	reconciler := &countingReconciler{}
	d := NewEventDispatcher(newFakeProvider(), reconciler)

	inv := mustEvent(t, models.EventTypeInventoryCountUpdated, "inventory_count", "cat-1", models.InventoryCountPayload{
		CatalogObjectID: "cat-1",
		State:           models.InventoryStateInStock,
		Quantity:        40,
	})
	require.NoError(t, d.Dispatch(context.Background(), inv))

	cust := mustEvent(t, models.EventTypeCustomerUpdated, "customer", "cust-1", models.CustomerPayload{
		ID: "cust-1",
	})
	require.NoError(t, d.Dispatch(context.Background(), cust))

	assert.Zero(t, reconciler.calls)
}

func TestDispatchMalformedObjectFails(t *testing.T) {
	d := NewEventDispatcher(newFakeProvider(), &countingReconciler{})

	event := &models.WebhookEvent{
		ID:   "evt-1",
		Type: models.EventTypePaymentUpdated,
		Data: models.WebhookData{
			Type:   "payment",
			ID:     "pay-1",
			Object: json.RawMessage(`"not an object"`),
		},
	}
	assert.Error(t, d.Dispatch(context.Background(), event))
}
