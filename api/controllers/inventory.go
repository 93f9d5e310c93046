package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rxera/rxledger-backend/api/middleware"
	"github.com/rxera/rxledger-backend/api/responses"
	"github.com/rxera/rxledger-backend/api/validators"
	invsvc "github.com/rxera/rxledger-backend/internal/inventory"
	"github.com/rxera/rxledger-backend/internal/ledger"
	"github.com/rxera/rxledger-backend/internal/translog"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/logger"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

func actorFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ActorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}
	return id, nil
}

// CreateItem registers a stock item and, when initial stock is positive,
// records the opening restock in the same commit.
func CreateItem(svc invsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), actorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func GetItem(svc invsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.GetItem(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, item)
	}
}

func ListItems(svc invsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lowStock, err := validators.ParseQueryBool(r, "low_stock")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeRetired, err := validators.ParseQueryBool(r, "include_retired")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListItems(r.Context(), invsvc.ListItemsInput{
			Category:       strings.TrimSpace(r.URL.Query().Get("category")),
			Search:         strings.TrimSpace(r.URL.Query().Get("search")),
			LowStockOnly:   lowStock,
			IncludeRetired: includeRetired,
			Limit:          limit,
			Cursor:         strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func UpdateItem(svc invsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.UpdateItem(r.Context(), id, payload.toUpdateInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, item)
	}
}

// RetireItem soft-retires a stock item. History stays readable; mutations stop.
func RetireItem(svc invsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RetireItem(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "retired"})
	}
}

func LowStockAlerts(svc invsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.LowStockAlerts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// Restock adds stock to one item and returns the updated item with the
// ledger entry the mutation appended.
func Restock(led *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if led == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, txn, err := led.Restock(r.Context(), itemID, payload.Quantity, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, mutationResponse{
			Item:        invsvc.ToItemDTO(*item),
			Transaction: translog.ToTransactionDTO(*txn),
		})
	}
}

// Consume deducts stock from one item, all or nothing.
func Consume(led *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if led == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, txn, err := led.TryConsume(r.Context(), itemID, payload.Quantity, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, mutationResponse{
			Item:        invsvc.ToItemDTO(*item),
			Transaction: translog.ToTransactionDTO(*txn),
		})
	}
}

// ConsumeBulk deducts stock across several items in one atomic commit. If any
// line cannot be satisfied no stock moves at all.
func ConsumeBulk(led *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if led == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bulkConsumeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := payload.toLines()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txns, err := led.ConsumeMany(r.Context(), lines, actorID, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"transactions": translog.ToTransactionDTOs(txns),
		})
	}
}

// ItemTransactions pages through one item's ledger history, newest first.
func ItemTransactions(svc *translog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByItem(r.Context(), itemID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, transactionPageResponse{
			Transactions: translog.ToTransactionDTOs(page.Transactions),
			NextCursor:   page.NextCursor,
		})
	}
}

type createItemRequest struct {
	Name         string          `json:"name" validate:"required"`
	Category     string          `json:"category" validate:"required"`
	Manufacturer *string         `json:"manufacturer,omitempty"`
	BatchNo      string          `json:"batch_no" validate:"required"`
	InitialStock int             `json:"initial_stock" validate:"omitempty,min=0"`
	Threshold    int             `json:"threshold" validate:"required,min=0"`
	Unit         string          `json:"unit" validate:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price" validate:"required"`
	ExpiryDate   time.Time       `json:"expiry_date" validate:"required"`
}

func (r createItemRequest) toCreateInput() (invsvc.CreateItemInput, error) {
	if r.UnitPrice.IsNegative() {
		return invsvc.CreateItemInput{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	return invsvc.CreateItemInput{
		Name:         strings.TrimSpace(r.Name),
		Category:     strings.TrimSpace(r.Category),
		Manufacturer: r.Manufacturer,
		BatchNo:      strings.TrimSpace(r.BatchNo),
		InitialStock: r.InitialStock,
		Threshold:    r.Threshold,
		Unit:         strings.TrimSpace(r.Unit),
		UnitPrice:    r.UnitPrice,
		ExpiryDate:   r.ExpiryDate,
	}, nil
}

type updateItemRequest struct {
	Name         *string          `json:"name,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Manufacturer *string          `json:"manufacturer,omitempty"`
	BatchNo      *string          `json:"batch_no,omitempty"`
	Threshold    *int             `json:"threshold,omitempty" validate:"omitempty,min=0"`
	Unit         *string          `json:"unit,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	ExpiryDate   *time.Time       `json:"expiry_date,omitempty"`
}

func (r updateItemRequest) toUpdateInput() invsvc.UpdateItemInput {
	return invsvc.UpdateItemInput{
		Name:         r.Name,
		Category:     r.Category,
		Manufacturer: r.Manufacturer,
		BatchNo:      r.BatchNo,
		Threshold:    r.Threshold,
		Unit:         r.Unit,
		UnitPrice:    r.UnitPrice,
		ExpiryDate:   r.ExpiryDate,
	}
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type bulkConsumeRequest struct {
	Lines []bulkConsumeLine `json:"lines" validate:"required,min=1,dive"`
}

type bulkConsumeLine struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

func (r bulkConsumeRequest) toLines() ([]ledger.Line, error) {
	lines := make([]ledger.Line, 0, len(r.Lines))
	for _, line := range r.Lines {
		id, err := uuid.Parse(strings.TrimSpace(line.ItemID))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id")
		}
		lines = append(lines, ledger.Line{ItemID: id, Quantity: line.Quantity})
	}
	return lines, nil
}

type mutationResponse struct {
	Item        invsvc.ItemDTO          `json:"item"`
	Transaction translog.TransactionDTO `json:"transaction"`
}

type transactionPageResponse struct {
	Transactions []translog.TransactionDTO `json:"transactions"`
	NextCursor   string                    `json:"next_cursor,omitempty"`
}
