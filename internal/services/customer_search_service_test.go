package services

import (
	"context"
	"strings"
	"testing"
	"time"

	domain "github.com/orderdesk/adminsearch/internal/domain"
)

func newTestCustomerSearch(t *testing.T, lookupRepo *stubCustomerLookupRepo, users *stubUserRepo, orders *stubOrderRepo) CustomerSearchService {
	t.Helper()
	primary, err := NewLookupTableStrategy(lookupRepo, nil)
	if err != nil {
		t.Fatalf("NewLookupTableStrategy: %v", err)
	}
	fallback, err := NewUserQueryStrategy(users, nil)
	if err != nil {
		t.Fatalf("NewUserQueryStrategy: %v", err)
	}
	selector, err := NewStrategySelector(primary, fallback)
	if err != nil {
		t.Fatalf("NewStrategySelector: %v", err)
	}
	resolver, err := NewOrderResolver(OrderResolverDeps{
		Orders: orders,
		Cache:  newTestCache(),
	})
	if err != nil {
		t.Fatalf("NewOrderResolver: %v", err)
	}
	svc, err := NewCustomerSearchService(CustomerSearchServiceDeps{
		Selector:  selector,
		Users:     users,
		Orders:    orders,
		Resolver:  resolver,
		Formatter: NewOrderFormatter("https://admin.example.com"),
		Cache:     newTestCache(),
		Clock:     time.Now,
	})
	if err != nil {
		t.Fatalf("NewCustomerSearchService: %v", err)
	}
	return svc
}

func TestCustomerSearch_AssemblesCustomerResults(t *testing.T) {
	lookupRepo := &stubCustomerLookupRepo{available: true, namePairIDs: []int64{42}}
	users := &stubUserRepo{customers: []domain.Customer{{
		ID:             42,
		Email:          "john@example.com",
		FirstName:      "John",
		LastName:       "Smith",
		DateRegistered: time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
	}}}
	orders := &stubOrderRepo{
		orders: map[int64]domain.Order{},
		counts: map[int64]int{42: 3},
		recentByOwner: map[int64][]domain.Order{42: {
			{ID: 900, Number: "900", Status: domain.OrderStatusCompleted, TotalCents: 4999, Currency: "USD"},
		}},
	}
	svc := newTestCustomerSearch(t, lookupRepo, users, orders)

	result, err := svc.SearchUsers(context.Background(), "John Smith")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(result.Customers) != 1 {
		t.Fatalf("expected one customer, got %d", len(result.Customers))
	}
	customer := result.Customers[0]
	if customer.Name != "John Smith" || customer.Email != "john@example.com" {
		t.Fatalf("unexpected customer %+v", customer)
	}
	if customer.Orders != 3 {
		t.Fatalf("expected order count 3, got %d", customer.Orders)
	}
	if len(customer.OrdersList) != 1 || customer.OrdersList[0].ID != 900 {
		t.Fatalf("unexpected orders list %+v", customer.OrdersList)
	}
	if customer.EditURL != "https://admin.example.com/customers/42" {
		t.Fatalf("unexpected edit URL %q", customer.EditURL)
	}
	if result.ShouldRedirect {
		t.Fatalf("name searches must not auto-redirect")
	}
}

func TestCustomerSearch_DirectOrderHitRedirects(t *testing.T) {
	lookupRepo := &stubCustomerLookupRepo{available: true}
	users := &stubUserRepo{}
	orders := &stubOrderRepo{orders: map[int64]domain.Order{
		12345: {ID: 12345, Number: "12345", Status: domain.OrderStatusProcessing},
	}}
	svc := newTestCustomerSearch(t, lookupRepo, users, orders)

	result, err := svc.SearchUsers(context.Background(), "12345")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(result.Orders) != 1 {
		t.Fatalf("expected one direct order match, got %d", len(result.Orders))
	}
	if !result.ShouldRedirect {
		t.Fatalf("exactly one order match must auto-redirect")
	}
	if !strings.HasSuffix(result.RedirectURL, "/orders/12345") {
		t.Fatalf("unexpected redirect URL %q", result.RedirectURL)
	}
}

func TestCustomerSearch_GuestOrderEmailGuard(t *testing.T) {
	lookupRepo := &stubCustomerLookupRepo{available: true}
	users := &stubUserRepo{}
	orders := &stubOrderRepo{
		orders:  map[int64]domain.Order{},
		byEmail: []domain.Order{{ID: 1, BillingEmail: "guest@example.com"}},
	}
	svc := newTestCustomerSearch(t, lookupRepo, users, orders)

	result, err := svc.SearchUsers(context.Background(), "not-an-email@@@")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(result.GuestOrders) != 0 {
		t.Fatalf("malformed email must yield no guest orders")
	}
	if orders.emailCalls != 0 {
		t.Fatalf("malformed email must not query the order store")
	}

	result, err = svc.SearchUsers(context.Background(), "guest@example.com")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if orders.emailCalls != 1 {
		t.Fatalf("well-formed email must query the order store once, saw %d", orders.emailCalls)
	}
	if len(result.GuestOrders) != 1 {
		t.Fatalf("expected one guest order, got %d", len(result.GuestOrders))
	}
}

func TestCustomerSearch_RepeatSearchServedFromCache(t *testing.T) {
	lookupRepo := &stubCustomerLookupRepo{available: true, prefixIDs: []int64{7}}
	users := &stubUserRepo{customers: []domain.Customer{{
		ID:        7,
		Email:     "amy@example.com",
		FirstName: "Amy",
		LastName:  "Lee",
	}}}
	orders := &stubOrderRepo{orders: map[int64]domain.Order{}, counts: map[int64]int{7: 1}, recentByOwner: map[int64][]domain.Order{7: {
		{ID: 300, Number: "300", Status: domain.OrderStatusCompleted},
	}}}
	svc := newTestCustomerSearch(t, lookupRepo, users, orders)

	first, err := svc.SearchUsers(context.Background(), "amy")
	if err != nil {
		t.Fatalf("first SearchUsers: %v", err)
	}
	if len(first.Customers) != 1 {
		t.Fatalf("expected one customer, got %d", len(first.Customers))
	}
	if len(lookupRepo.prefixCalls) != 1 {
		t.Fatalf("expected one strategy query, got %d", len(lookupRepo.prefixCalls))
	}

	second, err := svc.SearchUsers(context.Background(), "amy")
	if err != nil {
		t.Fatalf("second SearchUsers: %v", err)
	}
	if len(lookupRepo.prefixCalls) != 1 {
		t.Fatalf("repeat search must be served from cache, strategy queries=%d", len(lookupRepo.prefixCalls))
	}
	if len(second.Customers) != 1 || second.Customers[0].ID != first.Customers[0].ID {
		t.Fatalf("cached result differs: %+v vs %+v", second.Customers, first.Customers)
	}
	if len(second.Customers[0].OrdersList) != 1 {
		t.Fatalf("cached result must keep the embedded order list, got %+v", second.Customers[0].OrdersList)
	}
}

func TestCustomerSearch_EmptyResultIsCachedToo(t *testing.T) {
	lookupRepo := &stubCustomerLookupRepo{available: true}
	svc := newTestCustomerSearch(t, lookupRepo, &stubUserRepo{}, &stubOrderRepo{orders: map[int64]domain.Order{}})

	for i := 0; i < 2; i++ {
		result, err := svc.SearchUsers(context.Background(), "nobody")
		if err != nil {
			t.Fatalf("SearchUsers %d: %v", i, err)
		}
		if len(result.Customers) != 0 {
			t.Fatalf("expected no customers, got %d", len(result.Customers))
		}
	}
	if len(lookupRepo.prefixCalls) != 1 {
		t.Fatalf("a repeated miss must not requery, strategy queries=%d", len(lookupRepo.prefixCalls))
	}
}

func TestCustomerSearch_InvalidTermIsEmptyNotError(t *testing.T) {
	svc := newTestCustomerSearch(t, &stubCustomerLookupRepo{available: true}, &stubUserRepo{}, &stubOrderRepo{orders: map[int64]domain.Order{}})

	result, err := svc.SearchUsers(context.Background(), "x")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(result.Customers) != 0 || len(result.Orders) != 0 || len(result.GuestOrders) != 0 {
		t.Fatalf("invalid term must yield empty result, got %+v", result)
	}
}
