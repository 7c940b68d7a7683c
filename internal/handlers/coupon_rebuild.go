package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/orderdesk/adminsearch/internal/platform/httpx"
	"github.com/orderdesk/adminsearch/internal/platform/requestctx"
	"github.com/orderdesk/adminsearch/internal/services"
)

// CouponRebuildHandlers exposes the lookup-table backfill builder to the
// admin UI.
type CouponRebuildHandlers struct {
	builder services.CouponLookupBuilder
}

// NewCouponRebuildHandlers wires the rebuild endpoints to the builder.
func NewCouponRebuildHandlers(builder services.CouponLookupBuilder) *CouponRebuildHandlers {
	return &CouponRebuildHandlers{builder: builder}
}

type rebuildRequest struct {
	Force     bool `json:"force"`
	BatchSize int  `json:"batch_size"`
}

// Rebuild handles POST /internal/admin/coupon-lookup:rebuild. A held lock or
// a rate-limited run reports success=false with 409, distinguishable from a
// data error; callers treat it as "try again later".
func (h *CouponRebuildHandlers) Rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.builder == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "lookup builder is not configured", http.StatusServiceUnavailable))
		return
	}

	req := rebuildRequest{Force: true}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be JSON", http.StatusBadRequest))
			return
		}
	}

	result, err := h.builder.RunBatch(ctx, services.BuildOptions{Force: req.Force, BatchSize: req.BatchSize})
	if err != nil {
		requestctx.Logger(ctx).Error("coupon lookup rebuild failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("rebuild_failed", "rebuild failed", http.StatusInternalServerError))
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	httpx.WriteJSON(w, status, result)
}

// Status handles GET /internal/admin/coupon-lookup:status.
func (h *CouponRebuildHandlers) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.builder == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "lookup builder is not configured", http.StatusServiceUnavailable))
		return
	}
	progress, err := h.builder.Status(ctx)
	if err != nil {
		requestctx.Logger(ctx).Error("coupon lookup status failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("status_failed", "status read failed", http.StatusInternalServerError))
		return
	}
	payload := map[string]any{
		"last_id":   progress.LastID,
		"processed": progress.Processed,
		"total":     progress.Total,
		"status":    string(progress.Status),
	}
	if !progress.StartedAt.IsZero() {
		payload["started_at"] = progress.StartedAt.UTC()
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}
