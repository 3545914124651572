package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"houser/internal/cache"
	"houser/internal/errors"
	"houser/internal/logger"
	"houser/internal/metrics"
	"houser/internal/model"
)

// Tier thresholds: the alternate-area tier runs below fallbackAreaThreshold
// results, the city-wide tier below cityWideThreshold.
const (
	fallbackAreaThreshold = 5
	cityWideThreshold     = 3

	defaultSearchTTL = time.Hour
)

// Tier names used in metrics and logs
const (
	tierExact        = "exact"
	tierFallbackArea = "fallback_area"
	tierCityWide     = "city_wide"
)

// SearchService runs the tiered search over the listings store
type SearchService struct {
	store   ListingStore
	stats   MarketStats
	cache   cache.Store
	ttl     time.Duration
	metrics *metrics.Metrics
}

// SearchOption configures a SearchService
type SearchOption func(*SearchService)

// WithSearchCache memoizes pages in c for ttl
func WithSearchCache(c cache.Store, ttl time.Duration) SearchOption {
	return func(s *SearchService) {
		s.cache = c
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSearchMetrics records tier and cache metrics
func WithSearchMetrics(m *metrics.Metrics) SearchOption {
	return func(s *SearchService) {
		s.metrics = m
	}
}

// NewSearchService creates a search service. stats may be nil, in which case
// results carry no price insight.
func NewSearchService(store ListingStore, stats MarketStats, opts ...SearchOption) *SearchService {
	s := &SearchService{
		store: store,
		stats: stats,
		ttl:   defaultSearchTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tierHit is one listing collected by a tier
type tierHit struct {
	listing model.Listing
	exact   bool
	reason  *string
}

// Search returns at most pageSize listings for plan, never including an id
// from exclusions. It queries the primary filter first, then the alternate
// area when fewer than five rows matched, then the whole city when fewer than
// three did. page does not affect the query; callers page by growing the
// exclusion set.
func (s *SearchService) Search(ctx context.Context, plan model.SearchPlan, page, pageSize int, exclusions *model.ExclusionSet) (*model.SearchOutcome, error) {
	if pageSize <= 0 {
		return &model.SearchOutcome{Results: []model.ResultItem{}}, nil
	}
	if page < 1 {
		page = 1
	}
	if exclusions == nil {
		exclusions = model.NewExclusionSet()
	}

	log := logger.FromContext(ctx).With("page", page, "page_size", pageSize)
	primary := plan.Primary
	seen := model.NewExclusionSet(exclusions.IDs()...)
	hits := make([]tierHit, 0, pageSize)

	collect := func(tier string, filter model.Filter, exact bool, reason *string) error {
		remaining := pageSize - len(hits)
		if remaining <= 0 {
			return nil
		}

		s.metrics.Tier(tier)
		rows, err := s.store.FindListings(ctx, model.ListingQuery{
			Filter:     filter,
			ExcludeIDs: seen.IDs(),
			Limit:      remaining,
		})
		if err != nil {
			return errors.New(errors.KindDataFetch, tier+" tier query failed", err)
		}

		added := 0
		for _, row := range rows {
			if added == remaining {
				break
			}
			if seen.Contains(row.ID) {
				continue
			}
			seen.Add(row.ID)
			hits = append(hits, tierHit{listing: row, exact: exact, reason: reason})
			added++
		}
		log.Debug("search tier complete", "tier", tier, "rows", added)
		return nil
	}

	if err := collect(tierExact, primary, true, nil); err != nil {
		return nil, err
	}

	if len(hits) < fallbackAreaThreshold && plan.Fallback.Area != "" {
		if err := collect(tierFallbackArea, primary.WithArea(plan.Fallback.Area), false, optionalString(plan.Fallback.Reason)); err != nil {
			return nil, err
		}
	}

	if len(hits) < cityWideThreshold && primary.City != "" {
		reason := fmt.Sprintf("More options in %s", primary.City)
		if err := collect(tierCityWide, primary.WithoutArea(), false, &reason); err != nil {
			return nil, err
		}
	}

	outcome := &model.SearchOutcome{Results: make([]model.ResultItem, 0, len(hits))}
	hasExact := false
	for _, h := range hits {
		outcome.Results = append(outcome.Results, model.NewResultItem(h.listing, h.exact, h.reason))
		if h.exact {
			hasExact = true
		} else {
			outcome.IsFallback = true
			outcome.IsSupplemented = true
		}
	}

	if hasExact && s.stats != nil {
		snapshot, err := s.stats.FromMarket(ctx, primary.Scope())
		switch {
		case err != nil:
			log.Warn("price insight skipped", "error", err)
		case snapshot != nil:
			annotateInsights(outcome.Results, snapshot.Prices.Avg)
		}
	}

	return outcome, nil
}

// searchCacheKey identifies one page of one plan for one exclusion set
type searchCacheKey struct {
	Plan       model.SearchPlan `json:"plan"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	Exclusions []int64          `json:"exclusions"`
}

func (k searchCacheKey) String() (string, error) {
	raw, err := json.Marshal(k)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return cache.Key(cache.NamespaceSearch, "search_"+hex.EncodeToString(sum[:])), nil
}

// SearchCached is Search memoized in the search cache namespace. The boolean
// reports whether the outcome came from cache.
func (s *SearchService) SearchCached(ctx context.Context, plan model.SearchPlan, page, pageSize int, exclusions *model.ExclusionSet) (*model.SearchOutcome, bool, error) {
	if page < 1 {
		page = 1
	}
	if s.cache == nil || pageSize <= 0 {
		outcome, err := s.Search(ctx, plan, page, pageSize, exclusions)
		return outcome, false, err
	}

	excluded := exclusions.IDs()
	if excluded == nil {
		excluded = []int64{}
	}

	key, err := searchCacheKey{
		Plan:       plan,
		Page:       page,
		PageSize:   pageSize,
		Exclusions: excluded,
	}.String()
	if err != nil {
		return nil, false, fmt.Errorf("search cache key: %w", err)
	}

	log := logger.FromContext(ctx)

	var cached model.SearchOutcome
	hit, err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err != nil {
		log.Warn("search cache read failed", "error", err)
	}
	if hit {
		s.metrics.CacheHit(cache.NamespaceSearch)
		return &cached, true, nil
	}
	s.metrics.CacheMiss(cache.NamespaceSearch)

	outcome, err := s.Search(ctx, plan, page, pageSize, exclusions)
	if err != nil {
		return nil, false, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, outcome, s.ttl); err != nil {
		log.Warn("search cache write failed", "error", err)
	}
	return outcome, false, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
