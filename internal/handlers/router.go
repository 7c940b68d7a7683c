package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/orderdesk/adminsearch/internal/platform/httpx"
)

const (
	defaultTimeout    = 30 * time.Second
	errorNotFoundCode = "route_not_found"
)

type routerConfig struct {
	middlewares      []func(http.Handler) http.Handler
	adminMiddlewares []func(http.Handler) http.Handler
	hookMiddlewares  []func(http.Handler) http.Handler

	health  *HealthHandlers
	search  *SearchHandlers
	hooks   *CouponHookHandlers
	rebuild *CouponRebuildHandlers
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

// NewRouter constructs the chi router with shared middleware and the internal
// admin route groups.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	if cfg.health == nil {
		cfg.health = NewHealthHandlers(nil)
	}
	r.Get("/healthz", cfg.health.Healthz)

	r.Route("/internal", func(internal chi.Router) {
		internal.Route("/admin", func(admin chi.Router) {
			for _, mw := range cfg.adminMiddlewares {
				if mw != nil {
					admin.Use(mw)
				}
			}
			if cfg.search != nil {
				admin.Get("/search", cfg.search.Search)
			}
			if cfg.rebuild != nil {
				admin.Post("/coupon-lookup:rebuild", cfg.rebuild.Rebuild)
				admin.Get("/coupon-lookup:status", cfg.rebuild.Status)
			}
		})
		internal.Route("/hooks", func(hooks chi.Router) {
			for _, mw := range cfg.hookMiddlewares {
				if mw != nil {
					hooks.Use(mw)
				}
			}
			if cfg.hooks != nil {
				hooks.Post("/coupons", cfg.hooks.CouponEvent)
			}
		})
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithAdminMiddlewares sets middleware applied to /internal/admin routes.
func WithAdminMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.adminMiddlewares = append(cfg.adminMiddlewares, mw...)
	}
}

// WithHookMiddlewares sets middleware applied to /internal/hooks routes.
func WithHookMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.hookMiddlewares = append(cfg.hookMiddlewares, mw...)
	}
}

// WithHealthHandlers overrides the /healthz handler set.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithSearchHandlers mounts the admin search endpoint.
func WithSearchHandlers(h *SearchHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.search = h
	}
}

// WithCouponHookHandlers mounts the coupon lifecycle hook endpoint.
func WithCouponHookHandlers(h *CouponHookHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.hooks = h
	}
}

// WithCouponRebuildHandlers mounts the lookup rebuild endpoints.
func WithCouponRebuildHandlers(h *CouponRebuildHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.rebuild = h
	}
}
