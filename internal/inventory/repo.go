package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

// ListFilter narrows the catalog listing. Zero values mean no filtering.
type ListFilter struct {
	Category       string
	Search         string
	LowStockOnly   bool
	IncludeRetired bool
	Limit          int
	Cursor         *pagination.Cursor
}

// Repository persists catalog metadata. Stock and version columns are owned
// by the ledger and never written here.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) CreateItem(ctx context.Context, item *models.StockItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) CreateOpeningTransaction(ctx context.Context, txn *models.StockTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.StockItem, error) {
	q := r.db.WithContext(ctx).Model(&models.StockItem{})

	if !filter.IncludeRetired {
		q = q.Where("retired_at IS NULL")
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}
	if filter.LowStockOnly {
		q = q.Where("stock < threshold")
	}
	if filter.Cursor != nil {
		q = q.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID,
		)
	}

	var items []models.StockItem
	if err := q.Order("created_at DESC, id DESC").Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListLowStock returns active items below threshold, most depleted first.
func (r *Repository) ListLowStock(ctx context.Context) ([]models.StockItem, error) {
	var items []models.StockItem
	err := r.db.WithContext(ctx).
		Where("retired_at IS NULL AND stock < threshold").
		Order("(threshold - stock) DESC, code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateDescriptive writes catalog metadata columns only.
func (r *Repository) UpdateDescriptive(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Retire soft-deletes the item. Returns the number of rows touched so the
// service can tell "already retired" apart from success.
func (r *Repository) Retire(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("id = ? AND retired_at IS NULL", id).
		Update("retired_at", gorm.Expr("CURRENT_TIMESTAMP"))
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
