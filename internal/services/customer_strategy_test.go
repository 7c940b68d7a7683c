package services

import (
	"context"
	"testing"
)

func TestLookupTableStrategy_NamePairSymmetry(t *testing.T) {
	repo := &stubCustomerLookupRepo{available: true, namePairIDs: []int64{42}}
	strategy, err := NewLookupTableStrategy(repo, nil)
	if err != nil {
		t.Fatalf("NewLookupTableStrategy: %v", err)
	}

	forward, err := strategy.Search(context.Background(), NormalizeTerm("John Smith"), 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	reversed, err := strategy.Search(context.Background(), NormalizeTerm("Smith John"), 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(forward) != 1 || len(reversed) != 1 || forward[0] != reversed[0] {
		t.Fatalf("name order must not change matches: %v vs %v", forward, reversed)
	}
	if len(repo.namePairCalls) != 2 {
		t.Fatalf("expected the name pair path both times, calls=%v", repo.namePairCalls)
	}
}

func TestLookupTableStrategy_EmailContainsFallback(t *testing.T) {
	repo := &stubCustomerLookupRepo{available: true, containsIDs: []int64{7}}
	strategy, err := NewLookupTableStrategy(repo, nil)
	if err != nil {
		t.Fatalf("NewLookupTableStrategy: %v", err)
	}

	ids, err := strategy.Search(context.Background(), NormalizeTerm("jane.doe"), 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("expected fallback contains hit, got %v", ids)
	}
	if len(repo.prefixCalls) != 1 || len(repo.containsCalls) != 1 {
		t.Fatalf("expected prefix then contains, prefix=%v contains=%v", repo.prefixCalls, repo.containsCalls)
	}
}

func TestLookupTableStrategy_NoContainsFallbackForNames(t *testing.T) {
	repo := &stubCustomerLookupRepo{available: true}
	strategy, err := NewLookupTableStrategy(repo, nil)
	if err != nil {
		t.Fatalf("NewLookupTableStrategy: %v", err)
	}

	if _, err := strategy.Search(context.Background(), NormalizeTerm("O'Brien"), 20); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(repo.containsCalls) != 0 {
		t.Fatalf("non email-ish terms must not hit the contains scan: %v", repo.containsCalls)
	}
}

func TestUserQueryStrategy_SplitsNamePairs(t *testing.T) {
	repo := &stubUserRepo{searchIDs: []int64{9}}
	strategy, err := NewUserQueryStrategy(repo, nil)
	if err != nil {
		t.Fatalf("NewUserQueryStrategy: %v", err)
	}

	ids, err := strategy.Search(context.Background(), NormalizeTerm("John Smith"), 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 1 || ids[0] != 9 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if repo.lastQuery.FirstName != "John" || repo.lastQuery.LastName != "Smith" {
		t.Fatalf("fallback must split names, got %+v", repo.lastQuery)
	}
}

func TestStrategySelector_PrefersPrimaryWhenAvailable(t *testing.T) {
	lookupRepo := &stubCustomerLookupRepo{available: true}
	primary, err := NewLookupTableStrategy(lookupRepo, nil)
	if err != nil {
		t.Fatalf("NewLookupTableStrategy: %v", err)
	}
	fallback, err := NewUserQueryStrategy(&stubUserRepo{}, nil)
	if err != nil {
		t.Fatalf("NewUserQueryStrategy: %v", err)
	}

	selector, err := NewStrategySelector(fallback, primary)
	if err != nil {
		t.Fatalf("NewStrategySelector: %v", err)
	}
	if selected := selector.Select(context.Background()); selected == nil || selected.Name() != "lookup_table" {
		t.Fatalf("expected lookup_table strategy, got %v", selected)
	}

	lookupRepo.available = false
	if selected := selector.Select(context.Background()); selected == nil || selected.Name() != "user_query" {
		t.Fatalf("expected user_query fallback, got %v", selected)
	}
}

func TestDedupeIDs(t *testing.T) {
	out := dedupeIDs([]int64{3, 1, 3, 2, 1, 4}, 3)
	if len(out) != 3 || out[0] != 3 || out[1] != 1 || out[2] != 2 {
		t.Fatalf("unexpected dedupe result %v", out)
	}
}
