package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/internal/sequencer"
	"github.com/rxera/rxledger-backend/pkg/db"
	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/enums"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

// Service exposes catalog management for stock items.
type Service interface {
	CreateItem(ctx context.Context, actorID uuid.UUID, input CreateItemInput) (*ItemDTO, error)
	GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error)
	ListItems(ctx context.Context, input ListItemsInput) (*ItemListResult, error)
	UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	RetireItem(ctx context.Context, id uuid.UUID) error
	LowStockAlerts(ctx context.Context) ([]ItemDTO, error)
}

// CreateItemInput holds the validated payload to register a stock item.
type CreateItemInput struct {
	Name         string
	Category     string
	Manufacturer *string
	BatchNo      string
	InitialStock int
	Threshold    int
	Unit         string
	UnitPrice    decimal.Decimal
	ExpiryDate   time.Time
}

// UpdateItemInput carries optional catalog edits. Stock is absent on purpose:
// counters move only through the ledger.
type UpdateItemInput struct {
	Name         *string
	Category     *string
	Manufacturer *string
	BatchNo      *string
	Threshold    *int
	Unit         *string
	UnitPrice    *decimal.Decimal
	ExpiryDate   *time.Time
}

// ListItemsInput mirrors the catalog query surface.
type ListItemsInput struct {
	Category       string
	Search         string
	LowStockOnly   bool
	IncludeRetired bool
	Limit          int
	Cursor         string
}

type codeIssuer interface {
	Next(ctx context.Context, series string) (string, error)
}

type catalogEvents interface {
	ItemCreated(ctx context.Context, item models.StockItem)
	ItemUpdated(ctx context.Context, item models.StockItem)
	ItemRetired(ctx context.Context, item models.StockItem)
	StockChanged(ctx context.Context, item models.StockItem, txn models.StockTransaction)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	codes    codeIssuer
	events   catalogEvents
}

// NewService constructs the catalog service. events may be nil.
func NewService(repo *Repository, dbClient *db.Client, codes codeIssuer, events catalogEvents) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if codes == nil {
		return nil, fmt.Errorf("code issuer required")
	}
	return &service{repo: repo, dbClient: dbClient, codes: codes, events: events}, nil
}

// CreateItem registers the item under a fresh MED code. A nonzero opening
// stock is recorded as the item's first RESTOCK so the log replays from zero.
func (s *service) CreateItem(ctx context.Context, actorID uuid.UUID, input CreateItemInput) (*ItemDTO, error) {
	if err := validateCreate(actorID, input); err != nil {
		return nil, err
	}

	code, err := s.codes.Next(ctx, sequencer.SeriesMedicine)
	if err != nil {
		return nil, err
	}

	item := &models.StockItem{
		ID:           uuid.New(),
		Code:         code,
		Name:         strings.TrimSpace(input.Name),
		Category:     strings.TrimSpace(input.Category),
		Manufacturer: input.Manufacturer,
		BatchNo:      input.BatchNo,
		Stock:        input.InitialStock,
		Threshold:    input.Threshold,
		Unit:         input.Unit,
		UnitPrice:    input.UnitPrice,
		ExpiryDate:   input.ExpiryDate,
	}

	var opening *models.StockTransaction
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: insert stock item")
		}
		if input.InitialStock > 0 {
			opening = &models.StockTransaction{
				ID:          uuid.New(),
				ItemID:      item.ID,
				Kind:        enums.TransactionKindRestock,
				Quantity:    input.InitialStock,
				StockBefore: 0,
				StockAfter:  input.InitialStock,
				ActorID:     actorID,
			}
			if err := txRepo.CreateOpeningTransaction(ctx, opening); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: insert opening transaction")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.ItemCreated(ctx, *item)
		if opening != nil {
			s.events.StockChanged(ctx, *item, *opening)
		}
	}

	dto := toItemDTO(*item)
	return &dto, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error) {
	item, err := s.findItem(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toItemDTO(*item)
	return &dto, nil
}

func (s *service) ListItems(ctx context.Context, input ListItemsInput) (*ItemListResult, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	items, err := s.repo.List(ctx, ListFilter{
		Category:       input.Category,
		Search:         strings.TrimSpace(input.Search),
		LowStockOnly:   input.LowStockOnly,
		IncludeRetired: input.IncludeRetired,
		Limit:          limit + 1,
		Cursor:         cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: list stock items")
	}

	result := &ItemListResult{}
	if len(items) > limit {
		items = items[:limit]
		last := items[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	result.Items = toItemDTOs(items)
	return result, nil
}

func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	item, err := s.findItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Retired() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stock item is retired").
			WithDetails(map[string]any{"item_id": item.ID, "item_code": item.Code})
	}

	fields, err := updateFields(input)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		dto := toItemDTO(*item)
		return &dto, nil
	}

	if err := s.repo.UpdateDescriptive(ctx, id, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: update stock item")
	}

	updated, err := s.findItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.ItemUpdated(ctx, *updated)
	}
	dto := toItemDTO(*updated)
	return &dto, nil
}

func (s *service) RetireItem(ctx context.Context, id uuid.UUID) error {
	item, err := s.findItem(ctx, id)
	if err != nil {
		return err
	}
	if item.Retired() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "stock item already retired").
			WithDetails(map[string]any{"item_id": item.ID, "item_code": item.Code})
	}

	touched, err := s.repo.Retire(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: retire stock item")
	}
	if touched == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "stock item already retired").
			WithDetails(map[string]any{"item_id": item.ID, "item_code": item.Code})
	}

	if s.events != nil {
		now := time.Now().UTC()
		item.RetiredAt = &now
		s.events.ItemRetired(ctx, *item)
	}
	return nil
}

func (s *service) LowStockAlerts(ctx context.Context) ([]ItemDTO, error) {
	items, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: list low stock items")
	}
	return toItemDTOs(items), nil
}

func (s *service) findItem(ctx context.Context, id uuid.UUID) (*models.StockItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found").
				WithDetails(map[string]any{"item_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: load stock item")
	}
	return item, nil
}

func validateCreate(actorID uuid.UUID, input CreateItemInput) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if strings.TrimSpace(input.Category) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "category required")
	}
	if input.InitialStock < 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "initial stock cannot be negative")
	}
	if input.Threshold < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "threshold cannot be negative")
	}
	if input.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	return nil
}

func updateFields(input UpdateItemInput) (map[string]any, error) {
	fields := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		fields["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Category != nil {
		fields["category"] = strings.TrimSpace(*input.Category)
	}
	if input.Manufacturer != nil {
		fields["manufacturer"] = *input.Manufacturer
	}
	if input.BatchNo != nil {
		fields["batch_no"] = *input.BatchNo
	}
	if input.Threshold != nil {
		if *input.Threshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "threshold cannot be negative")
		}
		fields["threshold"] = *input.Threshold
	}
	if input.Unit != nil {
		fields["unit"] = *input.Unit
	}
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
		}
		fields["unit_price"] = *input.UnitPrice
	}
	if input.ExpiryDate != nil {
		fields["expiry_date"] = *input.ExpiryDate
	}
	return fields, nil
}
