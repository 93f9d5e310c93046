package ledger

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/enums"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/logger"
	"github.com/rxera/rxledger-backend/pkg/metrics"
)

// ErrConflict signals a lost optimistic-locking race inside one commit
// attempt. The service retries these internally before surfacing
// CONCURRENCY_CONFLICT to callers.
var ErrConflict = errors.New("stock version conflict")

const defaultCommitAttempts = 3

const (
	opRestock     = "restock"
	opConsume     = "consume"
	opConsumeMany = "consume_many"
)

// Line pairs an item with the quantity a single operation moves.
type Line struct {
	ItemID   uuid.UUID
	Quantity int
}

// EventSink receives committed ledger mutations. Delivery happens after the
// transaction commits; implementations must not block.
type EventSink interface {
	StockChanged(ctx context.Context, item models.StockItem, txn models.StockTransaction)
}

// Service is the single writer for stock counters. Every mutation pairs a
// guarded stock update with exactly one appended StockTransaction, inside
// one atomic store scope.
type Service struct {
	store          Store
	events         EventSink
	metrics        *metrics.LedgerMetrics
	logg           *logger.Logger
	commitAttempts int
}

// ServiceParams wires the ledger dependencies.
type ServiceParams struct {
	Store          Store
	Events         EventSink
	Metrics        *metrics.LedgerMetrics
	Logger         *logger.Logger
	CommitAttempts int
}

// NewService builds the stock ledger service.
func NewService(p ServiceParams) (*Service, error) {
	if p.Store == nil {
		return nil, errors.New("ledger store required")
	}
	attempts := p.CommitAttempts
	if attempts <= 0 {
		attempts = defaultCommitAttempts
	}
	return &Service{
		store:          p.Store,
		events:         p.Events,
		metrics:        p.Metrics,
		logg:           p.Logger,
		commitAttempts: attempts,
	}, nil
}

// Restock atomically adds quantity to the item's stock and appends one
// RESTOCK transaction.
func (s *Service) Restock(ctx context.Context, itemID uuid.UUID, quantity int, actorID uuid.UUID) (*models.StockItem, *models.StockTransaction, error) {
	item, txn, err := s.applySingle(ctx, opRestock, enums.TransactionKindRestock, itemID, quantity, actorID, nil)
	if err != nil {
		return nil, nil, err
	}
	return item, txn, nil
}

// TryConsume atomically deducts quantity from the item's stock, failing with
// INSUFFICIENT_STOCK and no effect when the counter would go negative.
func (s *Service) TryConsume(ctx context.Context, itemID uuid.UUID, quantity int, actorID uuid.UUID) (*models.StockItem, *models.StockTransaction, error) {
	item, txn, err := s.applySingle(ctx, opConsume, enums.TransactionKindConsume, itemID, quantity, actorID, nil)
	if err != nil {
		return nil, nil, err
	}
	return item, txn, nil
}

func (s *Service) applySingle(ctx context.Context, op string, kind enums.TransactionKind, itemID uuid.UUID, quantity int, actorID uuid.UUID, prescriptionID *uuid.UUID) (*models.StockItem, *models.StockTransaction, error) {
	var (
		txns  []models.StockTransaction
		items []models.StockItem
	)
	err := s.commit(ctx, op, func(tx StoreTx) error {
		var err error
		txns, items, err = s.applyLines(ctx, tx, kind, []Line{{ItemID: itemID, Quantity: quantity}}, actorID, prescriptionID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, items, txns)
	return &items[0], &txns[0], nil
}

// ConsumeMany deducts every line or none. Validation and the guarded writes
// happen against one consistent snapshot inside a single store scope.
func (s *Service) ConsumeMany(ctx context.Context, lines []Line, actorID uuid.UUID, prescriptionID *uuid.UUID) ([]models.StockTransaction, error) {
	var (
		txns  []models.StockTransaction
		items []models.StockItem
	)
	err := s.commit(ctx, opConsumeMany, func(tx StoreTx) error {
		var err error
		txns, items, err = s.applyLines(ctx, tx, enums.TransactionKindConsume, lines, actorID, prescriptionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, items, txns)
	return txns, nil
}

// ConsumeInTx runs the consume batch inside a caller-owned scope so order
// rows and stock effects commit together. The caller owns conflict retries
// (ErrConflict) and event publication via PublishChanges after its commit.
func (s *Service) ConsumeInTx(ctx context.Context, tx StoreTx, lines []Line, actorID uuid.UUID, prescriptionID *uuid.UUID) ([]models.StockTransaction, []models.StockItem, error) {
	return s.applyLines(ctx, tx, enums.TransactionKindConsume, lines, actorID, prescriptionID)
}

// CommitAttempts reports the configured bound for internal conflict retries.
func (s *Service) CommitAttempts() int {
	return s.commitAttempts
}

// RecordConflict lets composing coordinators count their own lost races on
// the shared ledger metrics.
func (s *Service) RecordConflict(op string) {
	s.metrics.IncConflict(op)
}

// PublishChanges announces committed mutations to the event sink.
func (s *Service) PublishChanges(ctx context.Context, items []models.StockItem, txns []models.StockTransaction) {
	s.publish(ctx, items, txns)
}

func (s *Service) applyLines(ctx context.Context, tx StoreTx, kind enums.TransactionKind, lines []Line, actorID uuid.UUID, prescriptionID *uuid.UUID) ([]models.StockTransaction, []models.StockItem, error) {
	if actorID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	normalized, err := normalizeLines(lines)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]uuid.UUID, len(normalized))
	for i, line := range normalized {
		ids[i] = line.ItemID
	}

	rows, err := tx.ItemsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "read stock items")
	}
	byID := make(map[uuid.UUID]models.StockItem, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	for _, line := range normalized {
		item, ok := byID[line.ItemID]
		if !ok {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found").
				WithDetails(map[string]any{"item_id": line.ItemID})
		}
		if item.Retired() {
			return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stock item is retired").
				WithDetails(map[string]any{"item_id": item.ID, "item_code": item.Code})
		}
		if kind == enums.TransactionKindConsume && item.Stock < line.Quantity {
			return nil, nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for "+item.Name).
				WithDetails(map[string]any{
					"item_id":   item.ID,
					"item_code": item.Code,
					"available": item.Stock,
					"requested": line.Quantity,
				})
		}
	}

	txns := make([]models.StockTransaction, 0, len(normalized))
	items := make([]models.StockItem, 0, len(normalized))
	for _, line := range normalized {
		item := byID[line.ItemID]
		before := item.Stock
		after := before + line.Quantity
		if kind == enums.TransactionKindConsume {
			after = before - line.Quantity
		}

		ok, err := tx.UpdateStockCAS(ctx, item.ID, item.Version, after)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "update stock")
		}
		if !ok {
			return nil, nil, ErrConflict
		}

		txn := models.StockTransaction{
			ID:             uuid.New(),
			ItemID:         item.ID,
			Kind:           kind,
			Quantity:       line.Quantity,
			StockBefore:    before,
			StockAfter:     after,
			PrescriptionID: prescriptionID,
			ActorID:        actorID,
		}
		if err := tx.AppendTransaction(ctx, &txn); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "append stock transaction")
		}

		item.Stock = after
		item.Version++
		txns = append(txns, txn)
		items = append(items, item)
	}

	return txns, items, nil
}

func (s *Service) commit(ctx context.Context, op string, fn func(tx StoreTx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.commitAttempts; attempt++ {
		err := s.store.InTx(ctx, fn)
		if err == nil {
			s.metrics.IncCommit(op)
			s.metrics.ObserveAttempts(op, attempt)
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			s.metrics.ObserveAttempts(op, attempt)
			return err
		}
		s.metrics.IncConflict(op)
		lastErr = err
		if s.logg != nil {
			s.logg.Debug(ctx, "ledger commit lost version race, retrying")
		}
	}
	s.metrics.ObserveAttempts(op, s.commitAttempts)
	return pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, lastErr, "ledger commit kept losing to concurrent writers")
}

func (s *Service) publish(ctx context.Context, items []models.StockItem, txns []models.StockTransaction) {
	if s.events == nil {
		return
	}
	for i := range txns {
		s.events.StockChanged(ctx, items[i], txns[i])
	}
}

// normalizeLines validates quantities, folds duplicate items into one line and
// fixes the canonical processing order so concurrent multi-item operations
// never interleave their guarded writes in opposite directions.
func normalizeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}

	merged := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.ItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be positive").
				WithDetails(map[string]any{"item_id": line.ItemID, "quantity": line.Quantity})
		}
		merged[line.ItemID] += line.Quantity
	}

	normalized := make([]Line, 0, len(merged))
	for id, qty := range merged {
		normalized = append(normalized, Line{ItemID: id, Quantity: qty})
	}
	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i].ItemID.String() < normalized[j].ItemID.String()
	})
	return normalized, nil
}
