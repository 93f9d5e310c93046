package ledger

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/enums"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
)

// memStore keeps the ledger in memory with the same optimistic contract as
// the SQL store: reads see a snapshot, writes stage, and commit re-validates
// versions under the lock so racing scopes lose with ErrConflict.
type memStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.StockItem
	txns  []models.StockTransaction
}

func newMemStore(items ...models.StockItem) *memStore {
	s := &memStore{items: make(map[uuid.UUID]models.StockItem, len(items))}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *memStore) InTx(ctx context.Context, fn func(tx StoreTx) error) error {
	s.mu.Lock()
	snapshot := make(map[uuid.UUID]models.StockItem, len(s.items))
	for id, item := range s.items {
		snapshot[id] = item
	}
	s.mu.Unlock()

	tx := &memTx{snapshot: snapshot}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range tx.updates {
		if s.items[u.itemID].Version != u.expectedVersion {
			return ErrConflict
		}
	}
	for _, u := range tx.updates {
		live := s.items[u.itemID]
		live.Stock = u.newStock
		live.Version = u.expectedVersion + 1
		s.items[u.itemID] = live
	}
	s.txns = append(s.txns, tx.appended...)
	return nil
}

func (s *memStore) item(t *testing.T, id uuid.UUID) models.StockItem {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	require.True(t, ok)
	return item
}

func (s *memStore) transactions() []models.StockTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StockTransaction, len(s.txns))
	copy(out, s.txns)
	return out
}

type casUpdate struct {
	itemID          uuid.UUID
	expectedVersion int64
	newStock        int
}

type memTx struct {
	snapshot map[uuid.UUID]models.StockItem
	updates  []casUpdate
	appended []models.StockTransaction
}

func (t *memTx) ItemsByIDs(_ context.Context, ids []uuid.UUID) ([]models.StockItem, error) {
	items := make([]models.StockItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := t.snapshot[id]; ok {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID.String() < items[j].ID.String() })
	return items, nil
}

func (t *memTx) UpdateStockCAS(_ context.Context, itemID uuid.UUID, expectedVersion int64, newStock int) (bool, error) {
	item, ok := t.snapshot[itemID]
	if !ok || item.Version != expectedVersion {
		return false, nil
	}
	t.updates = append(t.updates, casUpdate{itemID: itemID, expectedVersion: expectedVersion, newStock: newStock})
	item.Stock = newStock
	item.Version++
	t.snapshot[itemID] = item
	return true, nil
}

func (t *memTx) AppendTransaction(_ context.Context, txn *models.StockTransaction) error {
	t.appended = append(t.appended, *txn)
	return nil
}

// staleStore loses every version race, for exercising retry exhaustion.
type staleStore struct{}

func (staleStore) InTx(_ context.Context, fn func(tx StoreTx) error) error {
	return fn(staleTx{})
}

type staleTx struct{}

func (staleTx) ItemsByIDs(_ context.Context, ids []uuid.UUID) ([]models.StockItem, error) {
	items := make([]models.StockItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.StockItem{ID: id, Name: "amoxicillin", Code: "MED001", Stock: 100})
	}
	return items, nil
}

func (staleTx) UpdateStockCAS(context.Context, uuid.UUID, int64, int) (bool, error) {
	return false, nil
}

func (staleTx) AppendTransaction(context.Context, *models.StockTransaction) error {
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.StockTransaction
}

func (r *recordingSink) StockChanged(_ context.Context, _ models.StockItem, txn models.StockTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, txn)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestItem(stock int) models.StockItem {
	return models.StockItem{
		ID:    uuid.New(),
		Code:  "MED001",
		Name:  "Amoxicillin 500mg",
		Stock: stock,
	}
}

func newTestService(t *testing.T, store Store, opts ...func(*ServiceParams)) *Service {
	t.Helper()
	params := ServiceParams{Store: store}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func TestRestockAppendsOneTransaction(t *testing.T) {
	item := newTestItem(10)
	store := newMemStore(item)
	svc := newTestService(t, store)
	actor := uuid.New()

	updated, txn, err := svc.Restock(context.Background(), item.ID, 5, actor)
	require.NoError(t, err)

	assert.Equal(t, 15, updated.Stock)
	assert.Equal(t, enums.TransactionKindRestock, txn.Kind)
	assert.Equal(t, 10, txn.StockBefore)
	assert.Equal(t, 15, txn.StockAfter)
	assert.Equal(t, actor, txn.ActorID)
	assert.Nil(t, txn.PrescriptionID)

	assert.Equal(t, 15, store.item(t, item.ID).Stock)
	assert.Len(t, store.transactions(), 1)
}

func TestTryConsumeDeducts(t *testing.T) {
	item := newTestItem(10)
	store := newMemStore(item)
	svc := newTestService(t, store)

	updated, txn, err := svc.TryConsume(context.Background(), item.ID, 4, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 6, updated.Stock)
	assert.Equal(t, enums.TransactionKindConsume, txn.Kind)
	assert.Equal(t, 10, txn.StockBefore)
	assert.Equal(t, 6, txn.StockAfter)
	assert.Len(t, store.transactions(), 1)
}

func TestTryConsumeInsufficientStockLeavesNoTrace(t *testing.T) {
	item := newTestItem(3)
	store := newMemStore(item)
	svc := newTestService(t, store)

	_, _, err := svc.TryConsume(context.Background(), item.ID, 5, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, details["available"])
	assert.Equal(t, 5, details["requested"])
	assert.Equal(t, item.Code, details["item_code"])

	assert.Equal(t, 3, store.item(t, item.ID).Stock)
	assert.Empty(t, store.transactions())
}

func TestQuantityMustBePositive(t *testing.T) {
	item := newTestItem(10)
	store := newMemStore(item)
	svc := newTestService(t, store)

	for _, qty := range []int{0, -2} {
		_, _, err := svc.TryConsume(context.Background(), item.ID, qty, uuid.New())
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))

		_, _, err = svc.Restock(context.Background(), item.ID, qty, uuid.New())
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))
	}
	assert.Empty(t, store.transactions())
}

func TestUnknownItemNotFound(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	_, _, err := svc.TryConsume(context.Background(), uuid.New(), 1, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRetiredItemRejectsMutations(t *testing.T) {
	item := newTestItem(10)
	now := item.CreatedAt
	item.RetiredAt = &now
	store := newMemStore(item)
	svc := newTestService(t, store)

	_, _, err := svc.Restock(context.Background(), item.ID, 5, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, store.transactions())
}

func TestConsumeManyAllOrNothing(t *testing.T) {
	first := newTestItem(10)
	second := newTestItem(2)
	second.Code = "MED002"
	store := newMemStore(first, second)
	svc := newTestService(t, store)

	_, err := svc.ConsumeMany(context.Background(), []Line{
		{ItemID: first.ID, Quantity: 5},
		{ItemID: second.ID, Quantity: 5},
	}, uuid.New(), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	assert.Equal(t, 10, store.item(t, first.ID).Stock)
	assert.Equal(t, 2, store.item(t, second.ID).Stock)
	assert.Empty(t, store.transactions())
}

func TestConsumeManyMergesDuplicateLines(t *testing.T) {
	item := newTestItem(10)
	store := newMemStore(item)
	svc := newTestService(t, store)
	rx := uuid.New()

	txns, err := svc.ConsumeMany(context.Background(), []Line{
		{ItemID: item.ID, Quantity: 2},
		{ItemID: item.ID, Quantity: 3},
	}, uuid.New(), &rx)
	require.NoError(t, err)

	require.Len(t, txns, 1)
	assert.Equal(t, 5, txns[0].Quantity)
	require.NotNil(t, txns[0].PrescriptionID)
	assert.Equal(t, rx, *txns[0].PrescriptionID)
	assert.Equal(t, 5, store.item(t, item.ID).Stock)
}

func TestExhaustedRetriesSurfaceConcurrencyConflict(t *testing.T) {
	svc := newTestService(t, staleStore{}, func(p *ServiceParams) { p.CommitAttempts = 4 })

	_, _, err := svc.TryConsume(context.Background(), uuid.New(), 1, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict))
	assert.True(t, pkgerrors.MetadataFor(pkgerrors.As(err).Code()).Retryable)
}

func TestConcurrentConsumersNeverOversell(t *testing.T) {
	item := newTestItem(50)
	store := newMemStore(item)
	svc := newTestService(t, store, func(p *ServiceParams) { p.CommitAttempts = 100 })

	const workers = 10
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.TryConsume(context.Background(), item.ID, 10, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, workers-5, insufficient)
	assert.Equal(t, 0, store.item(t, item.ID).Stock)
	assert.Len(t, store.transactions(), succeeded)
}

func TestConcurrentMixedTrafficConserves(t *testing.T) {
	item := newTestItem(20)
	store := newMemStore(item)
	svc := newTestService(t, store, func(p *ServiceParams) { p.CommitAttempts = 100 })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = svc.Restock(context.Background(), item.ID, 3, uuid.New())
		}()
		go func() {
			defer wg.Done()
			_, _, _ = svc.TryConsume(context.Background(), item.ID, 2, uuid.New())
		}()
	}
	wg.Wait()

	final := store.item(t, item.ID)
	assert.GreaterOrEqual(t, final.Stock, 0)

	// The store appends under the commit lock, so the log is already in
	// commit order. Replaying it from the initial counter must land exactly
	// on the final counter with contiguous before/after pairs.
	replayed := 20
	for _, txn := range store.transactions() {
		assert.Equal(t, replayed, txn.StockBefore)
		switch txn.Kind {
		case enums.TransactionKindRestock:
			replayed += txn.Quantity
		case enums.TransactionKindConsume:
			replayed -= txn.Quantity
		}
		assert.Equal(t, replayed, txn.StockAfter)
		assert.GreaterOrEqual(t, txn.StockAfter, 0)
	}
	assert.Equal(t, final.Stock, replayed)
}

func TestEventsPublishedOnlyAfterCommit(t *testing.T) {
	item := newTestItem(5)
	store := newMemStore(item)
	sink := &recordingSink{}
	svc := newTestService(t, store, func(p *ServiceParams) { p.Events = sink })

	_, _, err := svc.Restock(context.Background(), item.ID, 5, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, sink.count())

	_, _, err = svc.TryConsume(context.Background(), item.ID, 100, uuid.New())
	require.Error(t, err)
	assert.Equal(t, 1, sink.count())
}
