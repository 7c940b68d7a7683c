package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/platform/cache"
	"github.com/orderdesk/adminsearch/internal/platform/observability"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

const orderCacheType = "order"

// OrderToken is the normalized form of an order-number-like input. CacheKey
// is the lowercase prefix+number pair, giving case-insensitive identity for
// caching and lookup.
type OrderToken struct {
	Original   string
	Prefix     string
	Number     string
	FullNumber string
	NumericID  int64
	CacheKey   string
}

// OrderResolverDeps bundles dependencies required to construct an OrderResolver.
type OrderResolverDeps struct {
	Orders     repositories.OrderRepository
	Sequential repositories.SequentialNumberRepository
	Cache      *cache.SearchCache
	Tracer     *observability.SearchTracer
	// Prefixes is the recognised order-number prefix set, uppercase.
	Prefixes []string
	CacheTTL time.Duration
}

type orderResolver struct {
	orders     repositories.OrderRepository
	sequential repositories.SequentialNumberRepository
	cache      *cache.SearchCache
	tracer     *observability.SearchTracer
	prefixes   []string
	cacheTTL   time.Duration
}

// NewOrderResolver wires an OrderResolver. The sequential repository and the
// cache are optional; their absence skips the corresponding resolution steps.
func NewOrderResolver(deps OrderResolverDeps) (OrderResolver, error) {
	if deps.Orders == nil {
		return nil, ErrOrderRepositoryMissing
	}
	prefixes := make([]string, 0, len(deps.Prefixes))
	for _, prefix := range deps.Prefixes {
		trimmed := strings.ToUpper(strings.TrimSpace(prefix))
		if trimmed != "" {
			prefixes = append(prefixes, trimmed)
		}
	}
	if len(prefixes) == 0 {
		prefixes = []string{"B", "D"}
	}
	return &orderResolver{
		orders:     deps.Orders,
		sequential: deps.Sequential,
		cache:      deps.Cache,
		tracer:     deps.Tracer,
		prefixes:   prefixes,
		cacheTTL:   deps.CacheTTL,
	}, nil
}

// LooksLikeOrderNumber reports whether the input, after stripping "#", is an
// optionally-prefixed digit run. A bare prefix with no digits is rejected.
func (r *orderResolver) LooksLikeOrderNumber(input string) bool {
	_, ok := r.normalizeToken(input)
	return ok
}

// Resolve runs the resolution state machine: normalize, cache, sequential
// numbering integration, direct ID with canonical-number verification, miss.
// Both hits and misses are cached; the cache stores the order ID rather than
// the order, so replayed hits always rematerialise fresh order data.
func (r *orderResolver) Resolve(ctx context.Context, input string) (OrderResolution, error) {
	token, ok := r.normalizeToken(input)
	if !ok {
		return OrderResolution{Source: ResolutionInvalid}, nil
	}

	stop := r.tracer.StartTimer(ctx, "OrderResolver", "resolve")
	resolution, err := r.resolveToken(ctx, token)
	stop(map[string]any{"source": string(resolution.Source), "cached": resolution.Cached})
	return resolution, err
}

func (r *orderResolver) resolveToken(ctx context.Context, token OrderToken) (OrderResolution, error) {
	key := r.cache.SearchKey(token.CacheKey, orderCacheType)

	if value, found := r.cache.Get(ctx, key); found {
		if value == cache.Sentinel {
			return OrderResolution{Source: ResolutionCache, Cached: true}, nil
		}
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			order, fetchErr := r.orders.FindByID(ctx, id)
			if fetchErr == nil {
				return OrderResolution{Order: &order, Source: ResolutionCache, Cached: true}, nil
			}
			if repositories.IsNotFound(fetchErr) {
				// Stale mapping: the order vanished since it was cached.
				r.cache.Delete(ctx, key)
				return OrderResolution{Source: ResolutionCache, Cached: true}, nil
			}
			return OrderResolution{}, fetchErr
		}
		r.cache.Delete(ctx, key)
	}

	if r.sequential != nil && r.sequential.Available(ctx) {
		resolution, done, err := r.resolveSequential(ctx, token, key)
		if err != nil {
			return OrderResolution{}, err
		}
		if done {
			return resolution, nil
		}
	}

	if token.NumericID > 0 {
		order, err := r.orders.FindByID(ctx, token.NumericID)
		switch {
		case err == nil:
			if r.numberMatches(order, token) {
				r.cacheID(ctx, key, order.ID)
				return OrderResolution{Order: &order, Source: ResolutionDirectID}, nil
			}
			r.tracer.Log(ctx, "OrderResolver", "verification_mismatch", map[string]any{
				"token":     token.CacheKey,
				"canonical": order.Number,
			}, zapcore.DebugLevel)
		case repositories.IsNotFound(err):
		default:
			return OrderResolution{}, err
		}
	}

	r.cache.Set(ctx, key, cache.Sentinel, r.cacheTTL)
	return OrderResolution{Source: ResolutionNotFound}, nil
}

func (r *orderResolver) resolveSequential(ctx context.Context, token OrderToken, key string) (OrderResolution, bool, error) {
	for _, candidate := range []string{token.FullNumber, token.Number} {
		if candidate == "" {
			continue
		}
		id, err := r.sequential.FindOrderIDByNumber(ctx, candidate)
		if err != nil {
			if repositories.IsNotFound(err) {
				continue
			}
			return OrderResolution{}, false, err
		}
		order, err := r.orders.FindByID(ctx, id)
		if err != nil {
			if repositories.IsNotFound(err) {
				continue
			}
			return OrderResolution{}, false, err
		}
		r.cacheID(ctx, key, order.ID)
		return OrderResolution{Order: &order, Source: ResolutionSequentialPlugin}, true, nil
	}
	return OrderResolution{}, false, nil
}

// numberMatches verifies the order's canonical number against the expected
// case-insensitive variants. A numeric-ID collision under a different prefix
// must resolve as a miss, never as the colliding order.
func (r *orderResolver) numberMatches(order domain.Order, token OrderToken) bool {
	canonical := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(order.Number), "#"))
	if canonical == "" {
		return false
	}
	variants := []string{token.FullNumber, token.Number}
	for _, variant := range variants {
		if variant != "" && canonical == strings.ToLower(variant) {
			return true
		}
	}
	return false
}

func (r *orderResolver) cacheID(ctx context.Context, key string, id int64) {
	r.cache.Set(ctx, key, strconv.FormatInt(id, 10), r.cacheTTL)
}

func (r *orderResolver) normalizeToken(input string) (OrderToken, bool) {
	trimmed := strings.TrimSpace(input)
	trimmed = strings.TrimPrefix(trimmed, "#")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return OrderToken{}, false
	}

	upper := strings.ToUpper(trimmed)
	prefix := ""
	for _, candidate := range r.prefixes {
		if strings.HasPrefix(upper, candidate) {
			prefix = candidate
			break
		}
	}
	number := strings.TrimPrefix(upper, prefix)
	if number == "" || !isDigits(number) {
		return OrderToken{}, false
	}

	numericID, err := strconv.ParseInt(number, 10, 64)
	if err != nil {
		return OrderToken{}, false
	}
	full := prefix + number
	return OrderToken{
		Original:   input,
		Prefix:     prefix,
		Number:     number,
		FullNumber: full,
		NumericID:  numericID,
		CacheKey:   strings.ToLower(full),
	}, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
