package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/orderdesk/adminsearch/internal/platform/httpx"
	"github.com/orderdesk/adminsearch/internal/platform/requestctx"
	"github.com/orderdesk/adminsearch/internal/services"
)

// SearchHandlers serves the admin search endpoint.
type SearchHandlers struct {
	customers services.CustomerSearchService
	coupons   services.CouponSearchService
}

// NewSearchHandlers wires the endpoint to the search services.
func NewSearchHandlers(customers services.CustomerSearchService, coupons services.CouponSearchService) *SearchHandlers {
	return &SearchHandlers{customers: customers, coupons: coupons}
}

// Search handles GET /internal/admin/search?term=&scope=users|coupons.
// An invalid or too-short term yields an empty result, never an error.
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	term := r.URL.Query().Get("term")
	scope := services.SearchScope(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("scope"))))
	if scope == "" {
		scope = services.ScopeUsers
	}

	switch scope {
	case services.ScopeUsers:
		if h.customers == nil {
			httpx.WriteError(ctx, w, httpx.NewError("unavailable", "customer search is not configured", http.StatusServiceUnavailable))
			return
		}
		result, err := h.customers.SearchUsers(ctx, term)
		if err != nil {
			requestctx.Logger(ctx).Error("customer search failed", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("search_failed", "search failed", http.StatusInternalServerError))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, result)
	case services.ScopeCoupons:
		if h.coupons == nil {
			httpx.WriteError(ctx, w, httpx.NewError("unavailable", "coupon search is not configured", http.StatusServiceUnavailable))
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		result, err := h.coupons.SearchCoupons(ctx, term, limit)
		if err != nil {
			requestctx.Logger(ctx).Error("coupon search failed", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("search_failed", "search failed", http.StatusInternalServerError))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, result)
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_scope", "scope must be users or coupons", http.StatusBadRequest))
	}
}
