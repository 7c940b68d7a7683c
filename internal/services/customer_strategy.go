package services

import (
	"context"
	"sort"

	"go.uber.org/zap/zapcore"

	"github.com/orderdesk/adminsearch/internal/platform/observability"
	"github.com/orderdesk/adminsearch/internal/repositories"
)

// CustomerStrategy turns a classified term into candidate customer IDs.
// Implementations are registered with the selector and chosen by priority
// and availability, so search semantics degrade gracefully when the fast
// indexed table is absent.
type CustomerStrategy interface {
	Search(ctx context.Context, term SearchTerm, limit int) ([]int64, error)
	Available(ctx context.Context) bool
	Priority() int
	Name() string
}

const (
	lookupTablePriority = 100
	userQueryPriority   = 50

	emailContainsMinLength = 3
)

type lookupTableStrategy struct {
	repo   repositories.CustomerLookupRepository
	tracer *observability.SearchTracer
}

// NewLookupTableStrategy builds the primary strategy over the indexed
// customer lookup table.
func NewLookupTableStrategy(repo repositories.CustomerLookupRepository, tracer *observability.SearchTracer) (CustomerStrategy, error) {
	if repo == nil {
		return nil, ErrUserRepositoryMissing
	}
	return &lookupTableStrategy{repo: repo, tracer: tracer}, nil
}

func (s *lookupTableStrategy) Name() string  { return "lookup_table" }
func (s *lookupTableStrategy) Priority() int { return lookupTablePriority }

func (s *lookupTableStrategy) Available(ctx context.Context) bool {
	return s.repo.Available(ctx)
}

// Search prefix-matches a name pair in both column orders, or a single token
// across email/first/last/username. An email-ish term that prefix-matched
// nothing falls back to the broader email substring scan.
func (s *lookupTableStrategy) Search(ctx context.Context, term SearchTerm, limit int) ([]int64, error) {
	if limit <= 0 || !term.IsValid() {
		return nil, nil
	}

	if term.HasNamePair() {
		ids, err := s.repo.SearchNamePair(ctx, term.FirstName, term.LastName, limit)
		if err != nil {
			return nil, err
		}
		s.trace(ctx, "name_pair", term, len(ids))
		return dedupeIDs(ids, limit), nil
	}

	token := term.Sanitized
	if term.SingleName != "" {
		token = term.SingleName
	}
	ids, err := s.repo.SearchPrefix(ctx, token, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && term.EmailIsh() && len(token) >= emailContainsMinLength {
		ids, err = s.repo.SearchEmailContains(ctx, token, limit)
		if err != nil {
			return nil, err
		}
		s.trace(ctx, "email_contains", term, len(ids))
	} else {
		s.trace(ctx, "prefix", term, len(ids))
	}
	return dedupeIDs(ids, limit), nil
}

func (s *lookupTableStrategy) trace(ctx context.Context, mode string, term SearchTerm, matches int) {
	s.tracer.Log(ctx, "LookupTableStrategy", "search", map[string]any{
		"mode":    mode,
		"length":  term.Length,
		"matches": matches,
	}, zapcore.DebugLevel)
}

type userQueryStrategy struct {
	users  repositories.UserRepository
	tracer *observability.SearchTracer
}

// NewUserQueryStrategy builds the fallback strategy over the host platform's
// generic user store. It splits name pairs the same way the primary strategy
// does; the fallback historically searched the raw string and mismatched
// two-word names, and the split is the permanent fix.
func NewUserQueryStrategy(users repositories.UserRepository, tracer *observability.SearchTracer) (CustomerStrategy, error) {
	if users == nil {
		return nil, ErrUserRepositoryMissing
	}
	return &userQueryStrategy{users: users, tracer: tracer}, nil
}

func (s *userQueryStrategy) Name() string                   { return "user_query" }
func (s *userQueryStrategy) Priority() int                  { return userQueryPriority }
func (s *userQueryStrategy) Available(context.Context) bool { return true }

func (s *userQueryStrategy) Search(ctx context.Context, term SearchTerm, limit int) ([]int64, error) {
	if limit <= 0 || !term.IsValid() {
		return nil, nil
	}
	query := repositories.UserQuery{Term: term.Sanitized}
	if term.HasNamePair() {
		query.FirstName = term.FirstName
		query.LastName = term.LastName
	}
	ids, err := s.users.SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	s.tracer.Log(ctx, "UserQueryStrategy", "search", map[string]any{
		"length":  term.Length,
		"matches": len(ids),
	}, zapcore.DebugLevel)
	return dedupeIDs(ids, limit), nil
}

// StrategySelector holds the closed strategy set sorted descending by
// priority and picks the first available one.
type StrategySelector struct {
	strategies []CustomerStrategy
}

// NewStrategySelector registers strategies, sorted once by static priority.
func NewStrategySelector(strategies ...CustomerStrategy) (*StrategySelector, error) {
	filtered := make([]CustomerStrategy, 0, len(strategies))
	for _, strategy := range strategies {
		if strategy != nil {
			filtered = append(filtered, strategy)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrStrategySelectorMissing
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Priority() > filtered[j].Priority()
	})
	return &StrategySelector{strategies: filtered}, nil
}

// Select returns the highest-priority available strategy, or nil when none is.
func (s *StrategySelector) Select(ctx context.Context) CustomerStrategy {
	if s == nil {
		return nil
	}
	for _, strategy := range s.strategies {
		if strategy.Available(ctx) {
			return strategy
		}
	}
	return nil
}

func dedupeIDs(ids []int64, limit int) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}
