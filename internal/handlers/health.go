package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/orderdesk/adminsearch/internal/platform/httpx"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

const healthPingTimeout = 2 * time.Second

// HealthHandlers serves liveness plus dependency pings.
type HealthHandlers struct {
	deps map[string]repositories.Pinger
	now  func() time.Time
}

// NewHealthHandlers builds the handler set over named dependency pingers.
func NewHealthHandlers(deps map[string]repositories.Pinger) *HealthHandlers {
	filtered := make(map[string]repositories.Pinger, len(deps))
	for name, pinger := range deps {
		if name != "" && pinger != nil {
			filtered[name] = pinger
		}
	}
	return &HealthHandlers{deps: filtered, now: time.Now}
}

// Healthz handles GET /healthz, reporting per-dependency reachability. Any
// failed ping degrades the overall status and the response code.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(h.deps))
	for name, pinger := range h.deps {
		if err := pinger.Ping(ctx); err != nil {
			checks[name] = "unreachable"
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
