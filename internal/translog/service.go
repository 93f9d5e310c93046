package translog

import (
	"context"

	"github.com/google/uuid"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

type logRepo interface {
	ItemExists(ctx context.Context, itemID uuid.UUID) (bool, error)
	ListByItem(ctx context.Context, itemID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.StockTransaction, error)
	ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]models.StockTransaction, error)
	ListRecent(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.StockTransaction, error)
}

// Page is one slice of log history plus the cursor for the next slice.
type Page struct {
	Transactions []models.StockTransaction
	NextCursor   string
}

type Service struct {
	repo logRepo
}

func NewService(repo logRepo) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "translog repo required")
	}
	return &Service{repo: repo}, nil
}

// ListByItem pages through an item's history, newest first. Unknown items are
// a NOT_FOUND, distinct from a known item with an empty history.
func (s *Service) ListByItem(ctx context.Context, itemID uuid.UUID, params pagination.Params) (*Page, error) {
	exists, err := s.repo.ItemExists(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "check stock item")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found").
			WithDetails(map[string]any{"item_id": itemID})
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	txns, err := s.repo.ListByItem(ctx, itemID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list item transactions")
	}
	return buildPage(txns, limit), nil
}

// ListByPrescription returns every deduction a fulfillment produced.
func (s *Service) ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]models.StockTransaction, error) {
	txns, err := s.repo.ListByPrescription(ctx, prescriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list prescription transactions")
	}
	return txns, nil
}

// ListRecent pages through the global log, newest first.
func (s *Service) ListRecent(ctx context.Context, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	txns, err := s.repo.ListRecent(ctx, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list transactions")
	}
	return buildPage(txns, limit), nil
}

func buildPage(txns []models.StockTransaction, limit int) *Page {
	page := &Page{Transactions: txns}
	if len(txns) > limit {
		page.Transactions = txns[:limit]
		last := page.Transactions[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page
}
