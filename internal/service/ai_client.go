package service

import (
	"context"

	"houser/internal/model"
)

// ListingStore runs single-tier listing reads
type ListingStore interface {
	FindListings(ctx context.Context, q model.ListingQuery) ([]model.Listing, error)
}

// MarketStore runs market-wide aggregates
type MarketStore interface {
	MarketAggregate(ctx context.Context, scope model.StatsScope) (*model.MarketAggregate, error)
	CityBreakdown(ctx context.Context, limit int) ([]model.CityAggregate, error)
}

// MarketStats returns the cached market snapshot for a scope. A nil snapshot
// with a nil error means the scope has no priced listings.
type MarketStats interface {
	FromMarket(ctx context.Context, scope model.StatsScope) (*model.StatsSnapshot, error)
}

// Searcher runs the tiered search for one page
type Searcher interface {
	Search(ctx context.Context, plan model.SearchPlan, page, pageSize int, exclusions *model.ExclusionSet) (*model.SearchOutcome, error)
}

// PlanExtractor turns a chat message into a validated plan
type PlanExtractor interface {
	Extract(ctx context.Context, message string, session *model.SessionContext) (*model.ChatPlan, error)
}

// NarrationRequest is the input for a streamed results narrative
type NarrationRequest struct {
	Message        string
	Results        []model.ResultItem
	Filter         model.Filter
	IsFallback     bool
	IsSupplemented bool
	UserName       string
}

// Narrator produces the advisor's prose
type Narrator interface {
	// Narrate streams fragments to emit in order. An error returned by emit
	// stops the stream and is returned, possibly wrapped.
	Narrate(ctx context.Context, req NarrationRequest, emit func(string) error) error

	// NarrateStats is single-shot and never fails; it falls back to a template
	NarrateStats(ctx context.Context, message string, snapshot *model.StatsSnapshot, session *model.SessionContext) string

	// Greet returns a one-sentence reply for the hello endpoint
	Greet(ctx context.Context, message string) string
}

var (
	_ PlanExtractor = (*LLMPlanner)(nil)
	_ Narrator      = (*LLMNarrator)(nil)
	_ Searcher      = (*SearchService)(nil)
	_ MarketStats   = (*StatsService)(nil)
)
