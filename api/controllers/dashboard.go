package controllers

import (
	"net/http"

	"github.com/rxera/rxledger-backend/api/responses"
	"github.com/rxera/rxledger-backend/internal/dashboard"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/logger"
)

// DashboardOverview returns the aggregate counters for the landing view.
func DashboardOverview(svc *dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		stats, err := svc.Overview(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stats)
	}
}
