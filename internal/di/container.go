package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orderdesk/adminsearch/internal/platform/cache"
	"github.com/orderdesk/adminsearch/internal/platform/config"
	"github.com/orderdesk/adminsearch/internal/platform/jobs"
	"github.com/orderdesk/adminsearch/internal/platform/observability"
	"github.com/orderdesk/adminsearch/internal/repositories"
	"github.com/orderdesk/adminsearch/internal/repositories/postgres"
	"github.com/orderdesk/adminsearch/internal/services"
)

// Repositories bundles the data-access contracts assembled by the container.
type Repositories struct {
	CustomerLookup repositories.CustomerLookupRepository
	Users          repositories.UserRepository
	Orders         repositories.OrderRepository
	Sequential     repositories.SequentialNumberRepository
	Coupons        repositories.CouponRepository
	CouponLookup   repositories.CouponLookupRepository
	BuildState     repositories.BuildStateRepository
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	CustomerSearch services.CustomerSearchService
	OrderResolver  services.OrderResolver
	CouponSearch   services.CouponSearchService
	CouponSync     services.CouponSyncService
	CouponBuilder  services.CouponLookupBuilder
}

// Deps carries the externally constructed infrastructure the container wires
// repositories and services around.
type Deps struct {
	DB        *postgres.Database
	Cache     *cache.SearchCache
	Tracer    *observability.SearchTracer
	Queries   *observability.QueryMonitor
	Scheduler jobs.Scheduler
	Clock     func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories Repositories
	Services     Services
}

// NewContainer constructs the runtime dependency graph.
func NewContainer(_ context.Context, cfg config.Config, deps Deps) (*Container, error) {
	if deps.DB == nil {
		return nil, errors.New("di: database is required")
	}

	repos, err := buildRepositories(deps.DB)
	if err != nil {
		return nil, err
	}
	svc, err := buildServices(cfg, repos, deps)
	if err != nil {
		return nil, err
	}
	return &Container{
		Config:       cfg,
		Repositories: repos,
		Services:     svc,
	}, nil
}

func buildRepositories(db *postgres.Database) (Repositories, error) {
	var repos Repositories
	var err error

	if repos.CustomerLookup, err = postgres.NewCustomerLookupRepository(db); err != nil {
		return Repositories{}, fmt.Errorf("build customer lookup repository: %w", err)
	}
	if repos.Users, err = postgres.NewUserRepository(db); err != nil {
		return Repositories{}, fmt.Errorf("build user repository: %w", err)
	}
	if repos.Orders, err = postgres.NewOrderRepository(db); err != nil {
		return Repositories{}, fmt.Errorf("build order repository: %w", err)
	}
	if repos.Sequential, err = postgres.NewSequentialNumberRepository(db); err != nil {
		return Repositories{}, fmt.Errorf("build sequential number repository: %w", err)
	}
	if repos.Coupons, err = postgres.NewCouponRepository(db); err != nil {
		return Repositories{}, fmt.Errorf("build coupon repository: %w", err)
	}
	if repos.CouponLookup, err = postgres.NewCouponLookupRepository(db); err != nil {
		return Repositories{}, fmt.Errorf("build coupon lookup repository: %w", err)
	}
	if repos.BuildState, err = postgres.NewBuildStateRepository(db); err != nil {
		return Repositories{}, fmt.Errorf("build build state repository: %w", err)
	}
	return repos, nil
}

func buildServices(cfg config.Config, repos Repositories, deps Deps) (Services, error) {
	var svc Services

	formatter := services.NewOrderFormatter(cfg.Search.AdminBaseURL)

	lookupStrategy, err := services.NewLookupTableStrategy(repos.CustomerLookup, deps.Tracer)
	if err != nil {
		return Services{}, fmt.Errorf("build lookup table strategy: %w", err)
	}
	fallbackStrategy, err := services.NewUserQueryStrategy(repos.Users, deps.Tracer)
	if err != nil {
		return Services{}, fmt.Errorf("build user query strategy: %w", err)
	}
	selector, err := services.NewStrategySelector(lookupStrategy, fallbackStrategy)
	if err != nil {
		return Services{}, fmt.Errorf("build strategy selector: %w", err)
	}

	svc.OrderResolver, err = services.NewOrderResolver(services.OrderResolverDeps{
		Orders:     repos.Orders,
		Sequential: repos.Sequential,
		Cache:      deps.Cache,
		Tracer:     deps.Tracer,
		Prefixes:   cfg.Search.OrderNumberPrefixes,
		CacheTTL:   cfg.Search.CacheTTL,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order resolver: %w", err)
	}

	svc.CustomerSearch, err = services.NewCustomerSearchService(services.CustomerSearchServiceDeps{
		Selector:       selector,
		Users:          repos.Users,
		Orders:         repos.Orders,
		Resolver:       svc.OrderResolver,
		Formatter:      formatter,
		Cache:          deps.Cache,
		Tracer:         deps.Tracer,
		Queries:        deps.Queries,
		CandidateLimit: cfg.Search.DefaultLimit,
		Clock:          deps.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build customer search service: %w", err)
	}

	svc.CouponSync, err = services.NewCouponSyncService(services.CouponSyncServiceDeps{
		Coupons: repos.Coupons,
		Lookup:  repos.CouponLookup,
		Tracer:  deps.Tracer,
		Clock:   deps.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon sync service: %w", err)
	}

	svc.CouponSearch, err = services.NewCouponSearchService(services.CouponSearchServiceDeps{
		Lookup:    repos.CouponLookup,
		Coupons:   repos.Coupons,
		Sync:      svc.CouponSync,
		Cache:     deps.Cache,
		CacheTTL:  cfg.Search.CouponCacheTTL,
		Formatter: formatter,
		Tracer:    deps.Tracer,
		Queries:   deps.Queries,
		Clock:     deps.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon search service: %w", err)
	}

	svc.CouponBuilder, err = services.NewCouponLookupBuilder(services.CouponLookupBuilderDeps{
		Coupons:     repos.Coupons,
		Sync:        svc.CouponSync,
		State:       repos.BuildState,
		Scheduler:   deps.Scheduler,
		Tracer:      deps.Tracer,
		BatchSize:   cfg.CouponLookup.BatchSize,
		LockTimeout: cfg.CouponLookup.LockTimeout,
		MinInterval: cfg.CouponLookup.MinInterval,
		ChainDelay:  cfg.CouponLookup.ChainDelay,
		Clock:       deps.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon lookup builder: %w", err)
	}

	return svc, nil
}
