package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/pkg/db"
	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/enums"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:inventory_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	stockItems := `
CREATE TABLE IF NOT EXISTS stock_items (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  manufacturer TEXT,
  batch_no TEXT NOT NULL DEFAULT '',
  stock INTEGER NOT NULL DEFAULT 0,
  threshold INTEGER NOT NULL DEFAULT 0,
  unit TEXT NOT NULL DEFAULT '',
  unit_price NUMERIC NOT NULL DEFAULT 0,
  expiry_date DATETIME,
  version INTEGER NOT NULL DEFAULT 0,
  retired_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	stockTransactions := `
CREATE TABLE IF NOT EXISTS stock_transactions (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  stock_before INTEGER NOT NULL,
  stock_after INTEGER NOT NULL,
  prescription_id TEXT,
  actor_id TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, conn.Exec(stockItems).Error)
	require.NoError(t, conn.Exec(stockTransactions).Error)
	require.NoError(t, conn.Exec("DELETE FROM stock_transactions").Error)
	require.NoError(t, conn.Exec("DELETE FROM stock_items").Error)
	return conn
}

type fakeCodes struct {
	mu   sync.Mutex
	next int
}

func (f *fakeCodes) Next(_ context.Context, series string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return series + uuid.NewString()[:6], nil
}

type recordedEvents struct {
	created []models.StockItem
	updated []models.StockItem
	retired []models.StockItem
	stock   []models.StockTransaction
}

func (r *recordedEvents) ItemCreated(_ context.Context, item models.StockItem) {
	r.created = append(r.created, item)
}

func (r *recordedEvents) ItemUpdated(_ context.Context, item models.StockItem) {
	r.updated = append(r.updated, item)
}

func (r *recordedEvents) ItemRetired(_ context.Context, item models.StockItem) {
	r.retired = append(r.retired, item)
}

func (r *recordedEvents) StockChanged(_ context.Context, _ models.StockItem, txn models.StockTransaction) {
	r.stock = append(r.stock, txn)
}

func newInventoryService(t *testing.T) (Service, *gorm.DB, *recordedEvents) {
	t.Helper()
	conn := setupInventoryTestDB(t)
	events := &recordedEvents{}
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), &fakeCodes{}, events)
	require.NoError(t, err)
	return svc, conn, events
}

func validCreateInput() CreateItemInput {
	return CreateItemInput{
		Name:         "Paracetamol 500mg",
		Category:     "Pain Relief",
		BatchNo:      "B-2026-03",
		InitialStock: 30,
		Threshold:    10,
		Unit:         "tablets",
		UnitPrice:    decimal.NewFromFloat(1.25),
		ExpiryDate:   time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateItemRecordsOpeningRestock(t *testing.T) {
	svc, conn, events := newInventoryService(t)
	actor := uuid.New()

	dto, err := svc.CreateItem(context.Background(), actor, validCreateInput())
	require.NoError(t, err)

	assert.NotEmpty(t, dto.Code)
	assert.Equal(t, 30, dto.Stock)
	assert.False(t, dto.LowStock)

	var txns []models.StockTransaction
	require.NoError(t, conn.Where("item_id = ?", dto.ID).Find(&txns).Error)
	require.Len(t, txns, 1)
	assert.Equal(t, enums.TransactionKindRestock, txns[0].Kind)
	assert.Equal(t, 0, txns[0].StockBefore)
	assert.Equal(t, 30, txns[0].StockAfter)
	assert.Equal(t, actor, txns[0].ActorID)

	require.Len(t, events.created, 1)
	require.Len(t, events.stock, 1)
}

func TestCreateItemWithZeroStockSkipsOpeningTransaction(t *testing.T) {
	svc, conn, events := newInventoryService(t)

	input := validCreateInput()
	input.InitialStock = 0
	dto, err := svc.CreateItem(context.Background(), uuid.New(), input)
	require.NoError(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.StockTransaction{}).Where("item_id = ?", dto.ID).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, events.stock)
	assert.True(t, dto.LowStock)
}

func TestCreateItemValidation(t *testing.T) {
	svc, _, _ := newInventoryService(t)

	input := validCreateInput()
	input.Name = "  "
	_, err := svc.CreateItem(context.Background(), uuid.New(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = validCreateInput()
	input.InitialStock = -1
	_, err = svc.CreateItem(context.Background(), uuid.New(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))
}

func TestGetItemNotFound(t *testing.T) {
	svc, _, _ := newInventoryService(t)

	_, err := svc.GetItem(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateItemLeavesStockAlone(t *testing.T) {
	svc, conn, events := newInventoryService(t)

	dto, err := svc.CreateItem(context.Background(), uuid.New(), validCreateInput())
	require.NoError(t, err)

	name := "Paracetamol 500mg (boxed)"
	threshold := 40
	updated, err := svc.UpdateItem(context.Background(), dto.ID, UpdateItemInput{
		Name:      &name,
		Threshold: &threshold,
	})
	require.NoError(t, err)

	assert.Equal(t, name, updated.Name)
	assert.Equal(t, 40, updated.Threshold)
	assert.Equal(t, 30, updated.Stock)
	assert.True(t, updated.LowStock)
	require.Len(t, events.updated, 1)

	var row models.StockItem
	require.NoError(t, conn.First(&row, "id = ?", dto.ID).Error)
	assert.Equal(t, 30, row.Stock)
	assert.EqualValues(t, 0, row.Version)
}

func TestRetireItemIsSoftAndTerminal(t *testing.T) {
	svc, _, events := newInventoryService(t)

	dto, err := svc.CreateItem(context.Background(), uuid.New(), validCreateInput())
	require.NoError(t, err)

	require.NoError(t, svc.RetireItem(context.Background(), dto.ID))
	require.Len(t, events.retired, 1)

	err = svc.RetireItem(context.Background(), dto.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	got, err := svc.GetItem(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.True(t, got.Retired)

	name := "renamed"
	_, err = svc.UpdateItem(context.Background(), dto.ID, UpdateItemInput{Name: &name})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestListItemsFilters(t *testing.T) {
	svc, _, _ := newInventoryService(t)
	ctx := context.Background()

	low := validCreateInput()
	low.Name = "Amoxicillin 250mg"
	low.Category = "Antibiotics"
	low.InitialStock = 2
	low.Threshold = 10
	lowDTO, err := svc.CreateItem(ctx, uuid.New(), low)
	require.NoError(t, err)

	ok := validCreateInput()
	ok.Name = "Cetirizine 10mg"
	ok.Category = "Allergy"
	_, err = svc.CreateItem(ctx, uuid.New(), ok)
	require.NoError(t, err)

	gone := validCreateInput()
	gone.Name = "Discontinued Syrup"
	goneDTO, err := svc.CreateItem(ctx, uuid.New(), gone)
	require.NoError(t, err)
	require.NoError(t, svc.RetireItem(ctx, goneDTO.ID))

	all, err := svc.ListItems(ctx, ListItemsInput{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	lowOnly, err := svc.ListItems(ctx, ListItemsInput{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, lowOnly.Items, 1)
	assert.Equal(t, lowDTO.ID, lowOnly.Items[0].ID)

	withRetired, err := svc.ListItems(ctx, ListItemsInput{IncludeRetired: true})
	require.NoError(t, err)
	assert.Len(t, withRetired.Items, 3)

	byCategory, err := svc.ListItems(ctx, ListItemsInput{Category: "Antibiotics"})
	require.NoError(t, err)
	require.Len(t, byCategory.Items, 1)
	assert.Equal(t, "Amoxicillin 250mg", byCategory.Items[0].Name)

	search, err := svc.ListItems(ctx, ListItemsInput{Search: "cetirizine"})
	require.NoError(t, err)
	if assert.Len(t, search.Items, 1) {
		assert.Equal(t, "Cetirizine 10mg", search.Items[0].Name)
	}
}

func TestLowStockAlertsOrderedByShortfall(t *testing.T) {
	svc, _, _ := newInventoryService(t)
	ctx := context.Background()

	mild := validCreateInput()
	mild.Name = "Mildly Low"
	mild.InitialStock = 9
	mild.Threshold = 10
	_, err := svc.CreateItem(ctx, uuid.New(), mild)
	require.NoError(t, err)

	severe := validCreateInput()
	severe.Name = "Severely Low"
	severe.InitialStock = 1
	severe.Threshold = 10
	_, err = svc.CreateItem(ctx, uuid.New(), severe)
	require.NoError(t, err)

	alerts, err := svc.LowStockAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Severely Low", alerts[0].Name)
	assert.Equal(t, "Mildly Low", alerts[1].Name)
}
