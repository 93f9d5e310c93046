package translog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

func setupTranslogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:translog_test?mode=memory&cache=shared"), &gorm.Config{})
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
	require.NoError(t, db.Exec(stockItems).Error)
	require.NoError(t, db.Exec(stockTransactions).Error)
	return db
}

func seedItem(t *testing.T, db *gorm.DB) models.StockItem {
	t.Helper()
	item := models.StockItem{
		ID:       uuid.New(),
		Code:     "MED" + uuid.NewString()[:8],
		Name:     "Ibuprofen 200mg",
		Category: "Pain Relief",
		Stock:    40,
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func seedTxn(t *testing.T, db *gorm.DB, itemID uuid.UUID, rxID *uuid.UUID, at time.Time) models.StockTransaction {
	t.Helper()
	txn := models.StockTransaction{
		ID:             uuid.New(),
		ItemID:         itemID,
		Kind:           "CONSUME",
		Quantity:       1,
		StockBefore:    2,
		StockAfter:     1,
		PrescriptionID: rxID,
		ActorID:        uuid.New(),
		CreatedAt:      at,
	}
	require.NoError(t, db.Create(&txn).Error)
	return txn
}

func TestRepoListByItemNewestFirstWithCursor(t *testing.T) {
	db := setupTranslogTestDB(t)
	repo := NewRepo(db)
	item := seedItem(t, db)
	other := seedItem(t, db)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var seeded []models.StockTransaction
	for i := 0; i < 3; i++ {
		seeded = append(seeded, seedTxn(t, db, item.ID, nil, base.Add(time.Duration(i)*time.Minute)))
	}
	seedTxn(t, db, other.ID, nil, base)

	first, err := repo.ListByItem(context.Background(), item.ID, 2, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, seeded[2].ID, first[0].ID)
	assert.Equal(t, seeded[1].ID, first[1].ID)

	rest, err := repo.ListByItem(context.Background(), item.ID, 2, &pagination.Cursor{
		CreatedAt: first[1].CreatedAt,
		ID:        first[1].ID,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, seeded[0].ID, rest[0].ID)
}

func TestRepoListByPrescriptionOldestFirst(t *testing.T) {
	db := setupTranslogTestDB(t)
	repo := NewRepo(db)
	item := seedItem(t, db)
	rx := uuid.New()

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	second := seedTxn(t, db, item.ID, &rx, base.Add(time.Minute))
	first := seedTxn(t, db, item.ID, &rx, base)
	seedTxn(t, db, item.ID, nil, base)

	txns, err := repo.ListByPrescription(context.Background(), rx)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, first.ID, txns[0].ID)
	assert.Equal(t, second.ID, txns[1].ID)
}

func TestRepoItemExists(t *testing.T) {
	db := setupTranslogTestDB(t)
	repo := NewRepo(db)
	item := seedItem(t, db)

	exists, err := repo.ItemExists(context.Background(), item.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ItemExists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

type fakeLogRepo struct {
	itemExists bool
	txns       []models.StockTransaction
}

func (f *fakeLogRepo) ItemExists(context.Context, uuid.UUID) (bool, error) {
	return f.itemExists, nil
}

func (f *fakeLogRepo) ListByItem(_ context.Context, _ uuid.UUID, limit int, _ *pagination.Cursor) ([]models.StockTransaction, error) {
	if limit > len(f.txns) {
		limit = len(f.txns)
	}
	return f.txns[:limit], nil
}

func (f *fakeLogRepo) ListByPrescription(context.Context, uuid.UUID) ([]models.StockTransaction, error) {
	return f.txns, nil
}

func (f *fakeLogRepo) ListRecent(_ context.Context, limit int, _ *pagination.Cursor) ([]models.StockTransaction, error) {
	if limit > len(f.txns) {
		limit = len(f.txns)
	}
	return f.txns[:limit], nil
}

func TestServiceListByItemUnknownItem(t *testing.T) {
	svc, err := NewService(&fakeLogRepo{itemExists: false})
	require.NoError(t, err)

	_, err = svc.ListByItem(context.Background(), uuid.New(), pagination.Params{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceListByItemBuildsNextCursor(t *testing.T) {
	txns := make([]models.StockTransaction, 3)
	for i := range txns {
		txns[i] = models.StockTransaction{
			ID:        uuid.New(),
			CreatedAt: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC).Add(time.Duration(-i) * time.Minute),
		}
	}
	svc, err := NewService(&fakeLogRepo{itemExists: true, txns: txns})
	require.NoError(t, err)

	page, err := svc.ListByItem(context.Background(), uuid.New(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)
	require.NotEmpty(t, page.NextCursor)

	cursor, err := pagination.ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, txns[1].ID, cursor.ID)
}

func TestServiceListByItemLastPageHasNoCursor(t *testing.T) {
	svc, err := NewService(&fakeLogRepo{itemExists: true, txns: []models.StockTransaction{{ID: uuid.New()}}})
	require.NoError(t, err)

	page, err := svc.ListByItem(context.Background(), uuid.New(), pagination.Params{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
	assert.Empty(t, page.NextCursor)
}

func TestServiceRejectsMalformedCursor(t *testing.T) {
	svc, err := NewService(&fakeLogRepo{itemExists: true})
	require.NoError(t, err)

	_, err = svc.ListRecent(context.Background(), pagination.Params{Cursor: "not-base64!!"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
