package translog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

// Repo reads the append-only stock transaction log. Writes happen only in the
// ledger; nothing here mutates rows.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) ItemExists(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("id = ?", itemID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByItem returns the item's history newest first, cursor paginated.
func (r *Repo) ListByItem(ctx context.Context, itemID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.StockTransaction, error) {
	q := r.db.WithContext(ctx).
		Where("item_id = ?", itemID)
	q = applyCursor(q, cursor)

	var txns []models.StockTransaction
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ListByPrescription returns the deductions a fulfillment produced, oldest
// first so the rows read in the order the ledger applied them.
func (r *Repo) ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]models.StockTransaction, error) {
	var txns []models.StockTransaction
	err := r.db.WithContext(ctx).
		Where("prescription_id = ?", prescriptionID).
		Order("created_at ASC, id ASC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// ListRecent returns the latest mutations across all items.
func (r *Repo) ListRecent(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.StockTransaction, error) {
	q := applyCursor(r.db.WithContext(ctx), cursor)

	var txns []models.StockTransaction
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func applyCursor(q *gorm.DB, cursor *pagination.Cursor) *gorm.DB {
	if cursor == nil {
		return q
	}
	return q.Where(
		"created_at < ? OR (created_at = ? AND id < ?)",
		cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
	)
}
