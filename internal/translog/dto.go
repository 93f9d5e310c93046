package translog

import (
	"time"

	"github.com/google/uuid"

	"github.com/rxera/rxledger-backend/pkg/db/models"
)

// TransactionDTO is the wire shape of one ledger entry.
type TransactionDTO struct {
	ID             uuid.UUID  `json:"id"`
	ItemID         uuid.UUID  `json:"item_id"`
	Kind           string     `json:"kind"`
	Quantity       int        `json:"quantity"`
	StockBefore    int        `json:"stock_before"`
	StockAfter     int        `json:"stock_after"`
	PrescriptionID *uuid.UUID `json:"prescription_id,omitempty"`
	ActorID        uuid.UUID  `json:"actor_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToTransactionDTO converts a ledger row for API responses.
func ToTransactionDTO(txn models.StockTransaction) TransactionDTO {
	return TransactionDTO{
		ID:             txn.ID,
		ItemID:         txn.ItemID,
		Kind:           string(txn.Kind),
		Quantity:       txn.Quantity,
		StockBefore:    txn.StockBefore,
		StockAfter:     txn.StockAfter,
		PrescriptionID: txn.PrescriptionID,
		ActorID:        txn.ActorID,
		CreatedAt:      txn.CreatedAt,
	}
}

// ToTransactionDTOs converts a page of ledger rows.
func ToTransactionDTOs(txns []models.StockTransaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(txns))
	for _, txn := range txns {
		out = append(out, ToTransactionDTO(txn))
	}
	return out
}
