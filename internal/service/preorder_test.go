package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"payment-reconciler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ReconciliationStore mirroring the transactional
// semantics of the SQL store: the capacity check, the ledger claim and the
// quantity update happen under one lock.
type memStore struct {
	mu        sync.Mutex
	preorders map[string]*models.Preorder
	ledger    map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		preorders: make(map[string]*models.Preorder),
		ledger:    make(map[string]int),
	}
}

func (m *memStore) add(p models.Preorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.preorders[p.ProductID] = &cp
}

func (m *memStore) quantity(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preorders[productID].CurrentQuantity
}

func (m *memStore) ledgerSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ledger)
}

func (m *memStore) ApplyPreorderDelta(ctx context.Context, candidates []string, delta int, ledgerKey string) (*models.Preorder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var preorder *models.Preorder
	for _, id := range candidates {
		if p, ok := m.preorders[id]; ok {
			preorder = p
			break
		}
	}
	if preorder == nil {
		return nil, false, models.ErrNotPreorderItem
	}

	if ledgerKey != "" {
		if _, ok := m.ledger[ledgerKey]; ok {
			cp := *preorder
			return &cp, true, nil
		}
	}

	if preorder.CurrentQuantity+delta > preorder.MaxQuantity {
		return nil, false, fmt.Errorf("%w: current=%d, delta=%d, max=%d",
			models.ErrCapacityExceeded, preorder.CurrentQuantity, delta, preorder.MaxQuantity)
	}

	if ledgerKey != "" {
		m.ledger[ledgerKey] = delta
	}
	preorder.CurrentQuantity += delta
	cp := *preorder
	return &cp, false, nil
}

func (m *memStore) ClaimLedgerKey(ctx context.Context, key string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ledger[key]; ok {
		return false, nil
	}
	m.ledger[key] = quantity
	return true, nil
}

func (m *memStore) FindPreorder(ctx context.Context, candidates []string) (*models.Preorder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range candidates {
		if p, ok := m.preorders[id]; ok {
			cp := *p
			return &cp, nil
		}
	}
	return nil, models.ErrNotPreorderItem
}

func testPreorder(productID string, current, max int) models.Preorder {
	return models.Preorder{
		ProductID:       productID,
		ReleaseDate:     time.Now().Add(30 * 24 * time.Hour),
		CurrentQuantity: current,
		MaxQuantity:     max,
		IsPreorder:      true,
	}
}

func TestApplyDeltaIdempotent(t *testing.T) {
	store := newMemStore()
	store.add(testPreorder("prod-1", 10, 20))
	r := NewPreorderReconciler(store)
	ctx := context.Background()

	key := models.PreorderLedgerKey("order-1", "prod-1")

	first, err := r.ApplyDelta(ctx, "prod-1", 2, key)
	require.NoError(t, err)
	assert.False(t, first.AlreadyApplied)
	assert.Equal(t, 12, first.Preorder.CurrentQuantity)

	second, err := r.ApplyDelta(ctx, "prod-1", 2, key)
	require.NoError(t, err)
	assert.True(t, second.AlreadyApplied)
	assert.Equal(t, 12, second.Preorder.CurrentQuantity)
	assert.Equal(t, 12, store.quantity("prod-1"))
}

func TestApplyDeltaCapacity(t *testing.T) {
	store := newMemStore()
	store.add(testPreorder("prod-1", 48, 50))
	r := NewPreorderReconciler(store)
	ctx := context.Background()

	_, err := r.ApplyDelta(ctx, "prod-1", 3, "")
	require.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.Equal(t, 48, store.quantity("prod-1"), "rejected delta must not be partially applied")

	state, err := r.ApplyDelta(ctx, "prod-1", 2, "")
	require.NoError(t, err)
	assert.Equal(t, 50, state.Preorder.CurrentQuantity)
}

func TestApplyDeltaRejectedLeavesNoLedgerRecord(t *testing.T) {
	store := newMemStore()
	store.add(testPreorder("prod-1", 50, 50))
	r := NewPreorderReconciler(store)

	_, err := r.ApplyDelta(context.Background(), "prod-1", 1, models.PreorderLedgerKey("order-1", "prod-1"))
	require.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.Zero(t, store.ledgerSize(), "a rejected delta was never applied")
}

func TestApplyDeltaConcurrentCapacityRace(t *testing.T) {
	store := newMemStore()
	store.add(testPreorder("prod-1", 19, 20))
	r := NewPreorderReconciler(store)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := models.PreorderLedgerKey(fmt.Sprintf("order-%d", i), "prod-1")
			_, err := r.ApplyDelta(context.Background(), "prod-1", 1, key)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, models.ErrCapacityExceeded):
			rejections++
		}
	}

	assert.Equal(t, 1, successes, "exactly one delta may win the last slot")
	assert.Equal(t, 1, rejections)
	assert.Equal(t, 20, store.quantity("prod-1"))
}

func TestApplyDeltaNotPreorder(t *testing.T) {
	r := NewPreorderReconciler(newMemStore())

	_, err := r.ApplyDelta(context.Background(), "regular-item", 1, "")
	assert.ErrorIs(t, err, models.ErrNotPreorderItem)
}

func TestApplyDeltaResolvesPrefixedProductID(t *testing.T) {
	store := newMemStore()
	store.add(testPreorder("product:cat-123", 0, 5))
	r := NewPreorderReconciler(store)

	// Caller passes the raw catalog id; the row is keyed under the
	// prefixed local form.
	state, err := r.ApplyDelta(context.Background(), "cat-123", 1, "")
	require.NoError(t, err)
	assert.Equal(t, "product:cat-123", state.Preorder.ProductID)
	assert.Equal(t, 1, state.Preorder.CurrentQuantity)
}

func TestApplyDeltaRejectsNonPositiveDelta(t *testing.T) {
	store := newMemStore()
	store.add(testPreorder("prod-1", 0, 5))
	r := NewPreorderReconciler(store)

	_, err := r.ApplyDelta(context.Background(), "prod-1", 0, "")
	assert.Error(t, err)

	_, err = r.ApplyDelta(context.Background(), "prod-1", -3, "")
	assert.Error(t, err)
	assert.Equal(t, 0, store.quantity("prod-1"))
}

func TestLookup(t *testing.T) {
	store := newMemStore()
	store.add(testPreorder("product:cat-9", 3, 10))
	r := NewPreorderReconciler(store)

	p, err := r.Lookup(context.Background(), "cat-9")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Remaining())

	_, err = r.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotPreorderItem)
}
