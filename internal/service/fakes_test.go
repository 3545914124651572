package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"houser/internal/model"
)

func strPtr(s string) *string       { return &s }
func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func listing(id int64, price float64) model.Listing {
	return model.Listing{
		ID:       id,
		Title:    strPtr("Listing"),
		Price:    float64Ptr(price),
		Bedrooms: intPtr(2),
		CityName: strPtr("Dubai"),
		AreaName: strPtr("Marina"),
	}
}

func listings(from, to int64, price float64) []model.Listing {
	out := make([]model.Listing, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, listing(id, price))
	}
	return out
}

// fakeListingStore answers each query by filter area and records every query
type fakeListingStore struct {
	mu      sync.Mutex
	byArea  map[string][]model.Listing
	err     error
	queries []model.ListingQuery
}

func (f *fakeListingStore) FindListings(_ context.Context, q model.ListingQuery) ([]model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.byArea[q.Filter.Area], nil
}

func (f *fakeListingStore) calls() []model.ListingQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ListingQuery, len(f.queries))
	copy(out, f.queries)
	return out
}

type fakeMarketStore struct {
	mu             sync.Mutex
	agg            *model.MarketAggregate
	breakdown      []model.CityAggregate
	err            error
	aggCalls       int
	breakdownCalls int
}

func (f *fakeMarketStore) MarketAggregate(_ context.Context, _ model.StatsScope) (*model.MarketAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggCalls++
	return f.agg, f.err
}

func (f *fakeMarketStore) CityBreakdown(_ context.Context, limit int) ([]model.CityAggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.breakdownCalls++
	if len(f.breakdown) > limit {
		return f.breakdown[:limit], nil
	}
	return f.breakdown, nil
}

type fakeMarketStats struct {
	snapshot *model.StatsSnapshot
	err      error
	scopes   []model.StatsScope
}

func (f *fakeMarketStats) FromMarket(_ context.Context, scope model.StatsScope) (*model.StatsSnapshot, error) {
	f.scopes = append(f.scopes, scope)
	return f.snapshot, f.err
}

type fakePlanner struct {
	plan *model.ChatPlan
	err  error
}

func (f *fakePlanner) Extract(context.Context, string, *model.SessionContext) (*model.ChatPlan, error) {
	return f.plan, f.err
}

// fakeSearcher optionally blocks until release is closed or the fetch
// context ends
type fakeSearcher struct {
	outcome *model.SearchOutcome
	err     error
	release chan struct{}

	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
}

func (f *fakeSearcher) Search(ctx context.Context, _ model.SearchPlan, _, _ int, _ *model.ExclusionSet) (*model.SearchOutcome, error) {
	if f.done != nil {
		defer close(f.done)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			f.mu.Lock()
			f.cancelled = true
			f.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	return f.outcome, f.err
}

func (f *fakeSearcher) wasCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

type fakeNarrator struct {
	chunks []string
	err    error
	stats  string
}

func (f *fakeNarrator) Narrate(_ context.Context, _ NarrationRequest, emit func(string) error) error {
	for _, c := range f.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return f.err
}

func (f *fakeNarrator) NarrateStats(context.Context, string, *model.StatsSnapshot, *model.SessionContext) string {
	return f.stats
}

func (f *fakeNarrator) Greet(context.Context, string) string {
	return "Hello."
}

// fakeModel is an llms.Model that replies with fixed text, streaming it in
// words when a streaming func is set
type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	m.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&m.options)
	}
	if m.err != nil {
		return nil, m.err
	}

	if m.options.StreamingFunc != nil {
		for _, word := range strings.SplitAfter(m.reply, " ") {
			if err := m.options.StreamingFunc(ctx, []byte(word)); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.reply}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// recorder collects emitted frames
type recorder struct {
	mu     sync.Mutex
	frames []model.Frame
	failAt int
	err    error
}

func (r *recorder) emit(f model.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil && len(r.frames) == r.failAt {
		return r.err
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) types() []model.FrameType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.FrameType, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f.Type)
	}
	return out
}

func (r *recorder) last() model.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[len(r.frames)-1]
}
