package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rxera/rxledger-backend/pkg/db/models"
)

// ItemDTO is the catalog view of a stock item. LowStock is derived from the
// live counter at read time, never stored.
type ItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Manufacturer *string         `json:"manufacturer,omitempty"`
	BatchNo      string          `json:"batch_no"`
	Stock        int             `json:"stock"`
	Threshold    int             `json:"threshold"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ExpiryDate   time.Time       `json:"expiry_date"`
	LowStock     bool            `json:"low_stock"`
	Retired      bool            `json:"retired"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ItemListResult is one catalog page plus the cursor for the next.
type ItemListResult struct {
	Items      []ItemDTO `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// ToItemDTO converts a stock item row for API responses.
func ToItemDTO(item models.StockItem) ItemDTO {
	return toItemDTO(item)
}

func toItemDTO(item models.StockItem) ItemDTO {
	return ItemDTO{
		ID:           item.ID,
		Code:         item.Code,
		Name:         item.Name,
		Category:     item.Category,
		Manufacturer: item.Manufacturer,
		BatchNo:      item.BatchNo,
		Stock:        item.Stock,
		Threshold:    item.Threshold,
		Unit:         item.Unit,
		UnitPrice:    item.UnitPrice,
		ExpiryDate:   item.ExpiryDate,
		LowStock:     item.LowStock(),
		Retired:      item.Retired(),
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func toItemDTOs(items []models.StockItem) []ItemDTO {
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	return dtos
}
