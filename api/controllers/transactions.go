package controllers

import (
	"net/http"
	"strings"

	"github.com/rxera/rxledger-backend/api/responses"
	"github.com/rxera/rxledger-backend/api/validators"
	"github.com/rxera/rxledger-backend/internal/translog"
	"github.com/rxera/rxledger-backend/pkg/logger"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

// RecentTransactions pages through the global ledger feed, newest first.
func RecentTransactions(svc *translog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListRecent(r.Context(), pagination.Params{
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
