package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/pkg/db/models"
)

// Store opens atomic read-validate-write scopes against the stock ledger.
// The indirection keeps the atomicity contract testable with an in-memory store.
type Store interface {
	InTx(ctx context.Context, fn func(tx StoreTx) error) error
}

// StoreTx is the mutation surface available inside one atomic scope.
// UpdateStockCAS succeeds only when the row still carries the expected
// version; a false return means another writer got there first.
type StoreTx interface {
	ItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.StockItem, error)
	UpdateStockCAS(ctx context.Context, itemID uuid.UUID, expectedVersion int64, newStock int) (bool, error)
	AppendTransaction(ctx context.Context, txn *models.StockTransaction) error
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore adapts a GORM connection to the ledger store contract.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) InTx(ctx context.Context, fn func(tx StoreTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStoreTx{tx: tx})
	})
}

type gormStoreTx struct {
	tx *gorm.DB
}

// NewGormStoreTx wraps an already-open transaction so callers can compose
// ledger writes with their own rows in a single commit.
func NewGormStoreTx(tx *gorm.DB) StoreTx {
	return &gormStoreTx{tx: tx}
}

func (t *gormStoreTx) ItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.StockItem, error) {
	var items []models.StockItem
	if err := t.tx.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (t *gormStoreTx) UpdateStockCAS(ctx context.Context, itemID uuid.UUID, expectedVersion int64, newStock int) (bool, error) {
	res := t.tx.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("id = ? AND version = ?", itemID, expectedVersion).
		Updates(map[string]any{
			"stock":   newStock,
			"version": expectedVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (t *gormStoreTx) AppendTransaction(ctx context.Context, txn *models.StockTransaction) error {
	return t.tx.WithContext(ctx).Create(txn).Error
}
