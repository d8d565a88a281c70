package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
)

type reportRequestKey struct{}

func (a *API) mountReports(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(a.parseReportRequest)

		sales := r.With(a.cached(func(r *http.Request) string {
			req := reportRequestFrom(r)
			timeline := r.URL.Query().Get("timeline")
			if req.StartDate != "" && req.EndDate != "" {
				timeline = ""
			}
			return cache.SalesReportKey(actorID(r), timeline, req.StartDate, req.EndDate)
		}))
		sales.Get("/sales", a.handleSalesReport)
		sales.Post("/sales", a.handleSalesReport)

		products := r.With(a.cached(func(r *http.Request) string {
			req := reportRequestFrom(r)
			return cache.ProductReportKey(actorID(r), req.StartDate, req.EndDate, r.URL.Query().Get("timeline"))
		}))
		products.Get("/products", a.handleProductReport)
		products.Post("/products", a.handleProductReport)
	})
}

// parseReportRequest reads the date window once so the cache key and the
// handler see the same values. GET requests take it from the query string.
func (a *API) parseReportRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.ReportRequest
		if r.Method == http.MethodGet {
			req.StartDate = r.URL.Query().Get("startDate")
			req.EndDate = r.URL.Query().Get("endDate")
		} else if err := decodeOptionalJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.StartDate = strings.TrimSpace(req.StartDate)
		req.EndDate = strings.TrimSpace(req.EndDate)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), reportRequestKey{}, req)))
	})
}

func reportRequestFrom(r *http.Request) domain.ReportRequest {
	req, _ := r.Context().Value(reportRequestKey{}).(domain.ReportRequest)
	return req
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.SalesReport(r.Context(), r.URL.Query().Get("timeline"), reportRequestFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	message := "Get reports successfully"
	if report.TotalOrders == 0 {
		message = "No orders found"
	}
	writeResult(w, http.StatusOK, message, report)
}

func (a *API) handleProductReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.ProductReport(r.Context(), r.URL.Query().Get("timeline"), reportRequestFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	message := "Get products report successfully"
	if len(report.Products) == 0 {
		message = "No orders found"
	}
	writeResult(w, http.StatusOK, message, report)
}
