package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rxera/rxledger-backend/pkg/enums"
)

// StockTransaction records an immutable ledger mutation. Rows are appended
// inside the same transaction as the stock update and never modified after.
type StockTransaction struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID         uuid.UUID             `gorm:"column:item_id;type:uuid;not null;index"`
	Kind           enums.TransactionKind `gorm:"column:kind;type:text;not null"`
	Quantity       int                   `gorm:"column:quantity;not null"`
	StockBefore    int                   `gorm:"column:stock_before;not null"`
	StockAfter     int                   `gorm:"column:stock_after;not null"`
	PrescriptionID *uuid.UUID            `gorm:"column:prescription_id;type:uuid;index"`
	ActorID        uuid.UUID             `gorm:"column:actor_id;type:uuid;not null"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}
