package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"houser/internal/cache"
	"houser/internal/logger"
	"houser/internal/metrics"
	"houser/internal/model"
)

const (
	// cityBreakdownLimit is the number of cities in a market-wide breakdown
	cityBreakdownLimit = 5

	defaultStatsTTL = time.Hour
	resultSetLabel  = "This Selection"
	marketWideLabel = "All UAE"
)

// StatsService computes price statistics for result sets and market segments
type StatsService struct {
	store   MarketStore
	cache   cache.Store
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewStatsService creates a stats service. A zero ttl uses one hour.
func NewStatsService(store MarketStore, c cache.Store, ttl time.Duration, m *metrics.Metrics) *StatsService {
	if ttl <= 0 {
		ttl = defaultStatsTTL
	}
	return &StatsService{store: store, cache: c, ttl: ttl, metrics: m}
}

// FromResults summarizes the priced items of a result set. It returns nil
// when no item carries a price.
func (s *StatsService) FromResults(results []model.ResultItem, label string) *model.StatsSnapshot {
	return resultSetStats(results, label)
}

func resultSetStats(results []model.ResultItem, label string) *model.StatsSnapshot {
	if label == "" {
		label = resultSetLabel
	}

	var (
		count       int
		sum, lo, hi float64
	)
	for _, r := range results {
		if r.Price <= 0 {
			continue
		}
		if count == 0 || r.Price < lo {
			lo = r.Price
		}
		if r.Price > hi {
			hi = r.Price
		}
		sum += r.Price
		count++
	}
	if count == 0 {
		return nil
	}

	return &model.StatsSnapshot{
		Area:       label,
		Counts:     model.StatsCounts{Total: len(results), Active: len(results)},
		Prices:     model.StatsPrices{Min: lo, Max: hi, Avg: sum / float64(count)},
		Provenance: model.ProvenanceResultSet,
	}
}

// statsCacheKey is the cache key for a scope, case-folded
func statsCacheKey(scope model.StatsScope) string {
	return cache.Key(cache.NamespaceStats, fmt.Sprintf("stats_%s_%s",
		strings.ToLower(strings.TrimSpace(scope.City)),
		strings.ToLower(strings.TrimSpace(scope.Area))))
}

// FromMarket returns aggregate prices over every active, priced listing in
// scope, served from cache when fresh. A scope with no listings yields
// (nil, nil).
func (s *StatsService) FromMarket(ctx context.Context, scope model.StatsScope) (*model.StatsSnapshot, error) {
	key := statsCacheKey(scope)
	log := logger.FromContext(ctx)

	if s.cache != nil {
		var cached model.StatsSnapshot
		hit, err := cache.GetJSON(ctx, s.cache, key, &cached)
		if err != nil {
			log.Warn("stats cache read failed", "key", key, "error", err)
		}
		if hit {
			s.metrics.CacheHit(cache.NamespaceStats)
			return &cached, nil
		}
		s.metrics.CacheMiss(cache.NamespaceStats)
	}

	agg, err := s.store.MarketAggregate(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("market aggregate: %w", err)
	}
	if agg == nil || agg.Total == 0 {
		return nil, nil
	}

	snapshot := &model.StatsSnapshot{
		Area:   firstNonBlank(scope.Area, scope.City, marketWideLabel),
		Counts: model.StatsCounts{Total: agg.Total, Active: agg.Total},
		Prices: model.StatsPrices{
			Min:        deref(agg.MinPrice),
			Max:        deref(agg.MaxPrice),
			Avg:        deref(agg.AvgPrice),
			TotalValue: agg.TotalValue,
		},
		Provenance: model.ProvenanceMarket,
	}

	if strings.TrimSpace(scope.City) == "" && strings.TrimSpace(scope.Area) == "" {
		breakdown, err := s.store.CityBreakdown(ctx, cityBreakdownLimit)
		if err != nil {
			return nil, fmt.Errorf("city breakdown: %w", err)
		}
		snapshot.CityBreakdown = breakdown
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, snapshot, s.ttl); err != nil {
			log.Warn("stats cache write failed", "key", key, "error", err)
		}
	}

	return snapshot, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
