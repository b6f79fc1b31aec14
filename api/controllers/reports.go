package controllers

import (
	"net/http"
	"time"

	"github.com/bookhaven/bookhaven-backend/api/responses"
	reportsvc "github.com/bookhaven/bookhaven-backend/internal/reports"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

// AdminSalesReport aggregates sales over the requested window. With no
// window given it covers the last 30 days.
func AdminSalesReport(svc reportsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		to := time.Now()
		from := to.AddDate(0, 0, -30)

		if raw := q.Get("from"); raw != "" {
			at, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "from must be RFC3339"))
				return
			}
			from = at
		}
		if raw := q.Get("to"); raw != "" {
			at, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "to must be RFC3339"))
				return
			}
			to = at
		}

		report, err := svc.SalesSummary(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
