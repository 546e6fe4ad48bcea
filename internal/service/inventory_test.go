package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"payment-reconciler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog is a scriptable CatalogProvider.
type fakeCatalog struct {
	mu sync.Mutex

	orders       map[string]*models.Order
	orderErr     error
	paymentErr   error
	inventoryErr error
	customers    map[string]string

	payments    []*models.PaymentRequest
	batches     [][]models.InventoryAdjustment
	batchTokens []string
	created     []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		orders:    make(map[string]*models.Order),
		customers: make(map[string]string),
	}
}

func (f *fakeCatalog) RetrieveOrder(ctx context.Context, orderID string) (*models.Order, error) {
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

func (f *fakeCatalog) CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	f.payments = append(f.payments, req)
	return &models.Payment{
		ID:          fmt.Sprintf("pay-%d", len(f.payments)),
		OrderID:     req.OrderID,
		Status:      models.PaymentStatusCompleted,
		AmountMoney: req.Amount,
	}, nil
}

func (f *fakeCatalog) BatchChangeInventory(ctx context.Context, token string, adjustments []models.InventoryAdjustment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inventoryErr != nil {
		return f.inventoryErr
	}
	f.batches = append(f.batches, adjustments)
	f.batchTokens = append(f.batchTokens, token)
	return nil
}

func (f *fakeCatalog) SearchCustomerByEmail(ctx context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[email], nil
}

func (f *fakeCatalog) CreateCustomer(ctx context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("cust-%d", len(f.created)+1)
	f.created = append(f.created, email)
	f.customers[email] = id
	return id, nil
}

func (f *fakeCatalog) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func testOrder(id string) *models.Order {
	return &models.Order{
		ID:      id,
		State:   models.OrderStateOpen,
		Version: 3,
		LineItems: []models.OrderLineItem{
			{UID: "li-1", CatalogObjectID: "cat-1", Quantity: 2, BasePrice: models.Money{Amount: 1500, Currency: "USD"}},
			{UID: "li-2", CatalogObjectID: "cat-2", Quantity: 1, BasePrice: models.Money{Amount: 2000, Currency: "USD"}},
		},
		TotalMoney: models.Money{Amount: 5000, Currency: "USD"},
	}
}

func TestFinalizeBuildsSoldTransitions(t *testing.T) {
	catalog := newFakeCatalog()
	adjuster := NewInventoryAdjuster(catalog, "loc-1")

	order := testOrder("order-1")
	require.NoError(t, adjuster.Finalize(context.Background(), order, "pay-9"))

	require.Len(t, catalog.batches, 1)
	batch := catalog.batches[0]
	require.Len(t, batch, 2)

	assert.Equal(t, "cat-1", batch[0].CatalogObjectID)
	assert.Equal(t, models.InventoryStateInStock, batch[0].FromState)
	assert.Equal(t, models.InventoryStateSold, batch[0].ToState)
	assert.Equal(t, 2, batch[0].Quantity)
	assert.Equal(t, "loc-1", batch[0].LocationID)
	assert.Contains(t, batch[0].Reason, "order-1")
	assert.Contains(t, batch[0].Reason, "pay-9")
	assert.NotEmpty(t, catalog.batchTokens[0])
}

func TestFinalizeSkipsUnresolvableItems(t *testing.T) {
	catalog := newFakeCatalog()
	adjuster := NewInventoryAdjuster(catalog, "loc-1")

	order := &models.Order{
		ID: "order-2",
		LineItems: []models.OrderLineItem{
			{UID: "li-1", CatalogObjectID: "", Quantity: 2},
			{UID: "li-2", CatalogObjectID: "cat-5", Quantity: 0},
			{UID: "li-3", CatalogObjectID: "cat-6", Quantity: 1},
		},
	}

	require.NoError(t, adjuster.Finalize(context.Background(), order, "pay-1"))
	require.Len(t, catalog.batches, 1)
	require.Len(t, catalog.batches[0], 1)
	assert.Equal(t, "cat-6", catalog.batches[0][0].CatalogObjectID)
}

func TestFinalizeNoAdjustableItemsSkipsProviderCall(t *testing.T) {
	catalog := newFakeCatalog()
	adjuster := NewInventoryAdjuster(catalog, "loc-1")

	order := &models.Order{ID: "order-3"}
	require.NoError(t, adjuster.Finalize(context.Background(), order, "pay-1"))
	assert.Zero(t, catalog.batchCount())
}

func TestFinalizeFreshTokenPerCall(t *testing.T) {
	catalog := newFakeCatalog()
	adjuster := NewInventoryAdjuster(catalog, "loc-1")
	order := testOrder("order-4")

	require.NoError(t, adjuster.Finalize(context.Background(), order, "pay-1"))
	require.NoError(t, adjuster.Finalize(context.Background(), order, "pay-1"))

	require.Len(t, catalog.batchTokens, 2)
	assert.NotEqual(t, catalog.batchTokens[0], catalog.batchTokens[1])
}

func TestFinalizePropagatesProviderError(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.inventoryErr = models.ErrProviderUnavailable
	adjuster := NewInventoryAdjuster(catalog, "loc-1")

	err := adjuster.Finalize(context.Background(), testOrder("order-5"), "pay-1")
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}
