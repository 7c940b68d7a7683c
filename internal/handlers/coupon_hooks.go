package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/orderdesk/adminsearch/internal/platform/httpx"
	"github.com/orderdesk/adminsearch/internal/platform/requestctx"
	"github.com/orderdesk/adminsearch/internal/services"
)

// CouponHookHandlers consumes coupon lifecycle events from the host
// platform's hook dispatcher, driving the lookup-table mirror sync.
type CouponHookHandlers struct {
	sync services.CouponSyncService
}

// NewCouponHookHandlers wires the hook endpoint to the sync service.
func NewCouponHookHandlers(sync services.CouponSyncService) *CouponHookHandlers {
	return &CouponHookHandlers{sync: sync}
}

type couponEventRequest struct {
	Event    string `json:"event"`
	CouponID int64  `json:"coupon_id"`
}

// CouponEvent handles POST /internal/hooks/coupons. The sync runs
// synchronously so a 200 means the mirror reflects the event.
func (h *CouponHookHandlers) CouponEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sync == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "coupon sync is not configured", http.StatusServiceUnavailable))
		return
	}

	var req couponEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be JSON", http.StatusBadRequest))
		return
	}
	if req.CouponID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon_id is required", http.StatusBadRequest))
		return
	}

	event := services.CouponEvent{
		Type:     services.CouponEventType(strings.ToLower(strings.TrimSpace(req.Event))),
		CouponID: req.CouponID,
	}
	if err := h.sync.HandleEvent(ctx, event); err != nil {
		if errors.Is(err, services.ErrUnknownCouponEvent) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown event type", http.StatusBadRequest))
			return
		}
		requestctx.Logger(ctx).Error("coupon hook failed",
			zap.String("event", string(event.Type)),
			zap.Int64("coupon_id", event.CouponID),
			zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("sync_failed", "coupon sync failed", http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
