package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockItem is the authoritative per-item stock counter plus catalog metadata.
// Stock and Version are only ever mutated through the ledger's guarded updates.
type StockItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code         string          `gorm:"column:code;not null;uniqueIndex"`
	Name         string          `gorm:"column:name;not null"`
	Category     string          `gorm:"column:category;not null"`
	Manufacturer *string         `gorm:"column:manufacturer"`
	BatchNo      string          `gorm:"column:batch_no;not null"`
	Stock        int             `gorm:"column:stock;not null;default:0"`
	Threshold    int             `gorm:"column:threshold;not null;default:0"`
	Unit         string          `gorm:"column:unit;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ExpiryDate   time.Time       `gorm:"column:expiry_date;not null"`
	Version      int64           `gorm:"column:version;not null;default:0"`
	RetiredAt    *time.Time      `gorm:"column:retired_at"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Retired reports whether the item has been soft-retired from the catalog.
func (s StockItem) Retired() bool {
	return s.RetiredAt != nil
}

// LowStock is the derived read-time predicate, never stored.
func (s StockItem) LowStock() bool {
	return s.Stock < s.Threshold
}
