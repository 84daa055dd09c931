package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pass-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	mu     sync.Mutex
	nextID int64
	orders []*models.Order
}

func (f *fakeOrderStore) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.orders) - 1; i >= 0; i-- {
		if f.orders[i].PaymentID == paymentID {
			cp := *f.orders[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderStore) FindRecentOrderByEmailAmount(ctx context.Context, email string, amount int64, since time.Time) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.orders) - 1; i >= 0; i-- {
		o := f.orders[i]
		if o.CustomerEmail == email && o.Amount == amount && !o.CreatedAt.Before(since) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	cp := *order
	f.orders = append(f.orders, &cp)
	return nil
}

func (f *fakeOrderStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeDedupCache struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (f *fakeDedupCache) MarkPaymentSeen(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[paymentID] {
		return false, nil
	}
	f.seen[paymentID] = true
	return true, nil
}

func confirmation(paymentID string) *PaymentConfirmation {
	return &PaymentConfirmation{
		PaymentID:      paymentID,
		Amount:         3200,
		Currency:       "EUR",
		CustomerName:   "Ana Martin",
		CustomerEmail:  "ana@example.com",
		Guests:         3,
		Days:           5,
		DeliveryMethod: models.DeliveryBoth,
		Source:         SourceWebhook,
	}
}

func TestReconcileSamePaymentIDOnce(t *testing.T) {
	store := &fakeOrderStore{}
	r := NewReconciler(store, nil, 5*time.Minute, noopPublisher{})

	first, err := r.Reconcile(context.Background(), confirmation("tx-123"))
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	// Same transaction over the other channel.
	dup := confirmation("tx-123")
	dup.Source = SourceReturn
	second, err := r.Reconcile(context.Background(), dup)
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, store.count())
}

func TestReconcileHeuristicWithinWindow(t *testing.T) {
	store := &fakeOrderStore{}
	r := NewReconciler(store, nil, 5*time.Minute, noopPublisher{})

	first, err := r.Reconcile(context.Background(), confirmation(""))
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	second, err := r.Reconcile(context.Background(), confirmation(""))
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, 1, store.count())
}

func TestReconcileHeuristicOutsideWindow(t *testing.T) {
	store := &fakeOrderStore{}
	r := NewReconciler(store, nil, 5*time.Minute, noopPublisher{})

	// An older order for the same customer and amount, beyond the window.
	old := &models.Order{
		Amount:        3200,
		CustomerEmail: "ana@example.com",
		Status:        models.OrderStatusPaid,
		CreatedAt:     time.Now().Add(-10 * time.Minute),
	}
	require.NoError(t, store.CreateOrder(context.Background(), old))

	res, err := r.Reconcile(context.Background(), confirmation(""))
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, 2, store.count())
}

func TestReconcileHeuristicDifferentAmountIsNew(t *testing.T) {
	store := &fakeOrderStore{}
	r := NewReconciler(store, nil, 5*time.Minute, noopPublisher{})

	_, err := r.Reconcile(context.Background(), confirmation(""))
	require.NoError(t, err)

	other := confirmation("")
	other.Amount = 9900
	res, err := r.Reconcile(context.Background(), other)
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, 2, store.count())
}

func TestReconcileCacheFailureDegradesToDB(t *testing.T) {
	store := &fakeOrderStore{}
	cache := &fakeDedupCache{err: assert.AnError}
	r := NewReconciler(store, cache, 5*time.Minute, noopPublisher{})

	first, err := r.Reconcile(context.Background(), confirmation("tx-9"))
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	second, err := r.Reconcile(context.Background(), confirmation("tx-9"))
	require.NoError(t, err)
	assert.False(t, second.IsNew)
}

func TestReconcileCacheDoesNotReplaceDBLookup(t *testing.T) {
	store := &fakeOrderStore{}
	cache := &fakeDedupCache{}
	r := NewReconciler(store, cache, 5*time.Minute, noopPublisher{})

	first, err := r.Reconcile(context.Background(), confirmation("tx-5"))
	require.NoError(t, err)
	require.True(t, first.IsNew)

	// Cache already saw tx-5; the duplicate must still resolve to the
	// existing order, not an error or a nil result.
	second, err := r.Reconcile(context.Background(), confirmation("tx-5"))
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	require.NotNil(t, second.Order)
	assert.Equal(t, first.Order.ID, second.Order.ID)
}

func TestReconcilePreservesScheduleRequest(t *testing.T) {
	store := &fakeOrderStore{}
	r := NewReconciler(store, nil, 5*time.Minute, noopPublisher{})

	when := time.Now().Add(48 * time.Hour).UTC()
	conf := confirmation("tx-44")
	conf.ScheduledFor = &when

	res, err := r.Reconcile(context.Background(), conf)
	require.NoError(t, err)
	require.NotNil(t, res.Order.ScheduledFor)
	assert.Equal(t, when, *res.Order.ScheduledFor)
	assert.Equal(t, models.OrderStatusPaid, res.Order.Status)
}

// racingOrderStore simulates the window where a winning insert is committed
// but not yet visible to a lookup, and enforces the payment_id unique index
// the way Postgres does.
type racingOrderStore struct {
	fakeOrderStore
	hiddenLookups int
}

func (s *racingOrderStore) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	s.mu.Lock()
	if s.hiddenLookups > 0 {
		s.hiddenLookups--
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()
	return s.fakeOrderStore.GetOrderByPaymentID(ctx, paymentID)
}

func (s *racingOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.PaymentID != "" {
		if existing, _ := s.fakeOrderStore.GetOrderByPaymentID(ctx, order.PaymentID); existing != nil {
			return errors.New(`pq: duplicate key value violates unique constraint "orders_payment_id_key"`)
		}
	}
	return s.fakeOrderStore.CreateOrder(ctx, order)
}

func TestReconcileCacheSignalResolvesInFlightInsert(t *testing.T) {
	store := &racingOrderStore{}
	cache := &fakeDedupCache{}
	r := NewReconciler(store, cache, 5*time.Minute, noopPublisher{})

	first, err := r.Reconcile(context.Background(), confirmation("tx-race"))
	require.NoError(t, err)
	require.True(t, first.IsNew)

	// The winning insert is not yet visible to the next lookup. The cache's
	// already-seen signal must make the gate wait for the row instead of
	// inserting a second order.
	store.hiddenLookups = 1
	second, err := r.Reconcile(context.Background(), confirmation("tx-race"))
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	require.NotNil(t, second.Order)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, store.count())
}

func TestReconcileInsertRaceResolvesToExistingOrder(t *testing.T) {
	store := &racingOrderStore{}
	r := NewReconciler(store, nil, 5*time.Minute, noopPublisher{})

	first, err := r.Reconcile(context.Background(), confirmation("tx-77"))
	require.NoError(t, err)
	require.True(t, first.IsNew)

	// No cache: the lookup misses but the insert hits the unique index.
	// The gate resolves the existing order instead of erroring.
	store.hiddenLookups = 1
	second, err := r.Reconcile(context.Background(), confirmation("tx-77"))
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	require.NotNil(t, second.Order)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, store.count())
}
