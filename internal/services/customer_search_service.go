package services

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	domain "github.com/orderdesk/adminsearch/internal/domain"
	"github.com/orderdesk/adminsearch/internal/platform/cache"
	"github.com/orderdesk/adminsearch/internal/platform/observability"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

const (
	customerCacheType = "customer"

	defaultCandidateLimit   = 20
	defaultRecentOrderLimit = 5
	guestOrderLimit         = 10
)

// CustomerSearchServiceDeps bundles dependencies required to construct the
// search orchestrator.
type CustomerSearchServiceDeps struct {
	Selector  *StrategySelector
	Users     repositories.UserRepository
	Orders    repositories.OrderRepository
	Resolver  OrderResolver
	Formatter *OrderFormatter
	Cache     *cache.SearchCache
	Tracer    *observability.SearchTracer
	Queries   *observability.QueryMonitor
	// CandidateLimit caps strategy results; zero applies the default of 20.
	CandidateLimit int
	// RecentOrderLimit caps each customer's embedded order list.
	RecentOrderLimit int
	Clock            func() time.Time
}

type customerSearchService struct {
	selector         *StrategySelector
	users            repositories.UserRepository
	orders           repositories.OrderRepository
	resolver         OrderResolver
	formatter        *OrderFormatter
	cache            *cache.SearchCache
	tracer           *observability.SearchTracer
	queries          *observability.QueryMonitor
	candidateLimit   int
	recentOrderLimit int
	clock            func() time.Time
}

// NewCustomerSearchService wires the scope=users search facade.
func NewCustomerSearchService(deps CustomerSearchServiceDeps) (CustomerSearchService, error) {
	if deps.Selector == nil {
		return nil, ErrStrategySelectorMissing
	}
	if deps.Users == nil {
		return nil, ErrUserRepositoryMissing
	}
	if deps.Orders == nil {
		return nil, ErrOrderRepositoryMissing
	}
	if deps.Formatter == nil {
		return nil, ErrFormatterMissing
	}
	candidateLimit := deps.CandidateLimit
	if candidateLimit <= 0 {
		candidateLimit = defaultCandidateLimit
	}
	recentLimit := deps.RecentOrderLimit
	if recentLimit <= 0 {
		recentLimit = defaultRecentOrderLimit
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &customerSearchService{
		selector:         deps.Selector,
		users:            deps.Users,
		orders:           deps.Orders,
		resolver:         deps.Resolver,
		formatter:        deps.Formatter,
		cache:            deps.Cache,
		tracer:           deps.Tracer,
		queries:          deps.Queries,
		candidateLimit:   candidateLimit,
		recentOrderLimit: recentLimit,
		clock:            func() time.Time { return clock().UTC() },
	}, nil
}

// SearchUsers composes the full scope=users response: customers via the
// strategy selector, guest orders by billing email, and a direct order match
// when the term looks like an order number. Exactly one direct order match
// flips the auto-redirect flag.
func (s *customerSearchService) SearchUsers(ctx context.Context, rawTerm string) (UsersSearchResult, error) {
	started := s.clock()
	result := UsersSearchResult{
		Customers:   []CustomerResult{},
		GuestOrders: []OrderSummary{},
		Orders:      []OrderSummary{},
	}

	term := NormalizeTerm(rawTerm)
	if !term.IsValid() {
		result.SearchTime = s.clock().Sub(started).Seconds()
		return result, nil
	}

	stop := s.tracer.StartTimer(ctx, "CustomerSearch", "search_users")
	defer func() { stop(map[string]any{"length": term.Length}) }()

	if s.resolver != nil && s.resolver.LooksLikeOrderNumber(term.Sanitized) {
		resolution, err := s.resolver.Resolve(ctx, term.Sanitized)
		if err != nil {
			return UsersSearchResult{}, err
		}
		if resolution.Order != nil {
			result.Orders = append(result.Orders, s.formatter.Summary(*resolution.Order))
		}
	}

	customers, err := s.searchCustomers(ctx, term)
	if err != nil {
		return UsersSearchResult{}, err
	}
	result.Customers = customers

	guestOrders, err := s.searchGuestOrders(ctx, term)
	if err != nil {
		return UsersSearchResult{}, err
	}
	result.GuestOrders = guestOrders

	if len(result.Orders) == 1 {
		result.ShouldRedirect = true
		result.RedirectURL = result.Orders[0].ViewURL
	}
	result.SearchTime = s.clock().Sub(started).Seconds()
	return result, nil
}

// searchCustomers runs the selected lookup strategy, fronted by the customer
// cache namespace: repeats of the same term within the default TTL replay the
// assembled results without touching the strategy or the stores.
func (s *customerSearchService) searchCustomers(ctx context.Context, term SearchTerm) ([]CustomerResult, error) {
	results := []CustomerResult{}

	key := s.cache.SearchKey(term.Sanitized, customerCacheType)
	if cached, found := s.cache.Get(ctx, key); found {
		var customers []CustomerResult
		if err := json.Unmarshal([]byte(cached), &customers); err == nil {
			if customers == nil {
				customers = []CustomerResult{}
			}
			return customers, nil
		}
		s.cache.Delete(ctx, key)
	}

	strategy := s.selector.Select(ctx)
	if strategy == nil {
		s.tracer.Log(ctx, "CustomerSearch", "no_strategy", nil, zapcore.WarnLevel)
		return results, nil
	}

	s.queries.Record("CustomerSearch")
	ids, err := strategy.Search(ctx, term, s.candidateLimit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		s.cache.Set(ctx, key, "[]", 0)
		return results, nil
	}

	s.queries.Record("CustomerSearch")
	customers, err := s.users.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	s.queries.Record("CustomerSearch")
	counts, err := s.orders.CountByCustomerIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Customer, len(customers))
	for _, customer := range customers {
		byID[customer.ID] = customer
	}

	for _, id := range ids {
		customer, ok := byID[id]
		if !ok {
			continue
		}
		entry, err := s.buildCustomerResult(ctx, customer, counts[id])
		if err != nil {
			return nil, err
		}
		results = append(results, entry)
	}

	if encoded, err := json.Marshal(results); err == nil {
		s.cache.Set(ctx, key, string(encoded), 0)
	}
	return results, nil
}

func (s *customerSearchService) buildCustomerResult(ctx context.Context, customer domain.Customer, orderCount int) (CustomerResult, error) {
	name := strings.TrimSpace(customer.FirstName + " " + customer.LastName)
	if name == "" {
		name = customer.DisplayName
	}
	if name == "" {
		name = customer.Username
	}

	email := customer.Email
	if email == "" {
		email = customer.BillingEmail
	}

	entry := CustomerResult{
		ID:           customer.ID,
		Name:         s.formatter.escape(name),
		Email:        s.formatter.escape(email),
		BillingEmail: s.formatter.escape(customer.BillingEmail),
		Orders:       orderCount,
		EditURL:      s.formatter.CustomerEditURL(customer.ID),
		OrdersList:   []OrderSummary{},
	}
	if !customer.DateRegistered.IsZero() {
		registered := customer.DateRegistered.UTC()
		entry.Registered = registered.Format(machineDateLayout)
		entry.RegisteredH = registered.Format(displayDateLayout)
	}

	if orderCount > 0 {
		s.queries.Record("CustomerSearch")
		orders, err := s.orders.ListRecentByCustomer(ctx, customer.ID, s.recentOrderLimit)
		if err != nil {
			return CustomerResult{}, err
		}
		for _, order := range orders {
			entry.OrdersList = append(entry.OrdersList, s.formatter.Summary(order))
		}
	}
	return entry, nil
}

// searchGuestOrders matches orders by billing email. Email format is a
// precondition, not best-effort matching: anything that does not parse as an
// address returns empty without touching the order store.
func (s *customerSearchService) searchGuestOrders(ctx context.Context, term SearchTerm) ([]OrderSummary, error) {
	summaries := []OrderSummary{}
	if !term.IsEmail {
		return summaries, nil
	}
	address := strings.TrimSpace(term.Sanitized)
	if _, err := mail.ParseAddress(address); err != nil {
		return summaries, nil
	}

	s.queries.Record("CustomerSearch")
	orders, err := s.orders.FindByBillingEmail(ctx, address, guestOrderLimit)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		if order.CustomerID != 0 {
			continue
		}
		summaries = append(summaries, s.formatter.Summary(order))
	}
	return summaries, nil
}
