package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houser/internal/errors"
	"houser/internal/metrics"
	"houser/internal/model"
)

func newTestPipeline(t *testing.T, planner PlanExtractor, searcher Searcher, stats MarketStats, narrator Narrator, opts ...PipelineOption) *Pipeline {
	t.Helper()
	p, err := NewPipeline(planner, searcher, stats, narrator, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func searchPlan(response string, wantsTable bool) *model.ChatPlan {
	return &model.ChatPlan{
		Type:       model.PlanSearch,
		Response:   response,
		WantsTable: wantsTable,
		SearchPlan: &model.SearchPlan{Primary: model.Filter{City: "Dubai", Area: "Marina"}},
	}
}

func twoResults() *model.SearchOutcome {
	return &model.SearchOutcome{Results: []model.ResultItem{
		{ID: 1, Title: "One", Price: 100, Beds: "1", IsExactMatch: true},
		{ID: 2, Title: "Two", Price: 200, Beds: "2", IsExactMatch: true},
	}}
}

func TestStreamChat_SearchFlow(t *testing.T) {
	m := metrics.New()
	p := newTestPipeline(t,
		&fakePlanner{plan: searchPlan("Looking now.", true)},
		&fakeSearcher{outcome: twoResults()},
		nil,
		&fakeNarrator{chunks: []string{"Two ", "great picks."}},
		WithPipelineMetrics(m),
	)

	rec := &recorder{}
	err := p.StreamChat(context.Background(), "2 bed in Marina", nil, rec.emit)
	require.NoError(t, err)

	assert.Equal(t, []model.FrameType{
		model.FrameTextChunk,
		model.FrameIntent,
		model.FrameResults,
		model.FrameTextChunk,
		model.FrameTextChunk,
		model.FrameFinal,
	}, rec.types())

	assert.Equal(t, "Looking now. ", rec.frames[0].Content)
	require.NotNil(t, rec.frames[1].Filters)
	assert.Equal(t, "Marina", rec.frames[1].Filters.Area)
	assert.Len(t, rec.frames[2].Outcome.Results, 2)
	assert.Equal(t, "Two ", rec.frames[3].Content)
	assert.Equal(t, "great picks.", rec.frames[4].Content)

	final := rec.last()
	assert.Len(t, final.Summary, 2)
	assert.Equal(t, "Property Summary:", final.TableTitle)
}

func TestStreamChat_FinalWithoutTable(t *testing.T) {
	p := newTestPipeline(t,
		&fakePlanner{plan: searchPlan("", false)},
		&fakeSearcher{outcome: twoResults()},
		nil,
		&fakeNarrator{chunks: []string{"Done."}},
	)

	rec := &recorder{}
	require.NoError(t, p.StreamChat(context.Background(), "2 bed", nil, rec.emit))

	assert.Equal(t, []model.FrameType{
		model.FrameIntent, model.FrameResults, model.FrameTextChunk, model.FrameFinal,
	}, rec.types())
	assert.Empty(t, rec.last().Summary)
	assert.Empty(t, rec.last().TableTitle)
}

func TestStreamChat_InfoAndClarification(t *testing.T) {
	for _, planType := range []string{model.PlanInfo, model.PlanClarification} {
		t.Run(planType, func(t *testing.T) {
			searcher := &fakeSearcher{}
			p := newTestPipeline(t,
				&fakePlanner{plan: &model.ChatPlan{Type: planType, Response: "Which city?"}},
				searcher, nil, &fakeNarrator{},
			)

			rec := &recorder{}
			require.NoError(t, p.StreamChat(context.Background(), "a house", nil, rec.emit))
			assert.Equal(t, []model.FrameType{model.FrameTextChunk, model.FrameFinal}, rec.types())
			assert.Equal(t, "Which city? ", rec.frames[0].Content)
		})
	}

	t.Run("no response text", func(t *testing.T) {
		p := newTestPipeline(t,
			&fakePlanner{plan: &model.ChatPlan{Type: model.PlanInfo}},
			&fakeSearcher{}, nil, &fakeNarrator{},
		)
		rec := &recorder{}
		require.NoError(t, p.StreamChat(context.Background(), "hi", nil, rec.emit))
		assert.Equal(t, []model.FrameType{model.FrameFinal}, rec.types())
	})
}

func TestStreamChat_Stats(t *testing.T) {
	stats := &fakeMarketStats{snapshot: &model.StatsSnapshot{
		Area:   "Marina",
		Counts: model.StatsCounts{Total: 10, Active: 10},
		Prices: model.StatsPrices{Min: 1, Max: 3, Avg: 2},
	}}
	p := newTestPipeline(t,
		&fakePlanner{plan: &model.ChatPlan{
			Type:       model.PlanStats,
			SearchPlan: &model.SearchPlan{Primary: model.Filter{City: "Dubai", Area: "Marina"}},
		}},
		&fakeSearcher{}, stats, &fakeNarrator{stats: "Marina is steady."},
	)

	rec := &recorder{}
	require.NoError(t, p.StreamChat(context.Background(), "prices in marina", nil, rec.emit))

	assert.Equal(t, []model.FrameType{model.FrameStats, model.FrameFinal}, rec.types())
	frame := rec.frames[0]
	assert.Equal(t, "Marina is steady.", frame.Response)
	assert.Equal(t, "Market Comparison Matrix", frame.TableTitle)
	assert.Equal(t, []model.ComparisonRow{{Name: "Marina", Avg: 2, Min: 1, Max: 3}}, frame.Comparison)
	assert.Equal(t, []model.StatsScope{{City: "Dubai", Area: "Marina"}}, stats.scopes)
}

func TestStreamChat_StatsFailure(t *testing.T) {
	p := newTestPipeline(t,
		&fakePlanner{plan: &model.ChatPlan{Type: model.PlanStats}},
		&fakeSearcher{}, &fakeMarketStats{err: fmt.Errorf("db down")}, &fakeNarrator{},
	)

	rec := &recorder{}
	err := p.StreamChat(context.Background(), "prices", nil, rec.emit)
	require.Error(t, err)
	assert.Equal(t, errors.KindDataFetch, errors.KindOf(err))
	assert.Equal(t, "data_fetch_failure", rec.last().ErrorType)
}

func TestStreamChat_PlanningFailures(t *testing.T) {
	tests := []struct {
		name     string
		planner  *fakePlanner
		response string
	}{
		{
			name:     "extractor error",
			planner:  &fakePlanner{err: fmt.Errorf("model unreachable")},
			response: planningFailureResponse,
		},
		{
			name:     "missing type",
			planner:  &fakePlanner{plan: &model.ChatPlan{}},
			response: planningFailureResponse,
		},
		{
			name:     "unknown type",
			planner:  &fakePlanner{plan: &model.ChatPlan{Type: "weather"}},
			response: planningFailureResponse,
		},
		{
			name:     "error plan",
			planner:  &fakePlanner{plan: &model.ChatPlan{Type: model.PlanError, Response: "AI service currently unavailable (API key missing)."}},
			response: "AI service currently unavailable (API key missing).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.planner, &fakeSearcher{}, nil, &fakeNarrator{})

			rec := &recorder{}
			err := p.StreamChat(context.Background(), "hello", nil, rec.emit)
			require.Error(t, err)
			assert.Equal(t, errors.KindPlanning, errors.KindOf(err))

			require.Equal(t, []model.FrameType{model.FrameError}, rec.types())
			assert.Equal(t, "planning_failure", rec.frames[0].ErrorType)
			assert.Equal(t, tt.response, rec.frames[0].Response)
		})
	}
}

func TestStreamChat_FetchTimeout(t *testing.T) {
	searcher := &fakeSearcher{release: make(chan struct{}), done: make(chan struct{})}
	p := newTestPipeline(t,
		&fakePlanner{plan: searchPlan("", false)},
		searcher, nil, &fakeNarrator{},
		WithFetchTimeout(50*time.Millisecond),
	)

	rec := &recorder{}
	started := time.Now()
	err := p.StreamChat(context.Background(), "2 bed", nil, rec.emit)
	require.Error(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, errors.KindDataFetch, errors.KindOf(err))
	assert.ErrorIs(t, err, errors.ErrFetchTimeout)

	assert.Equal(t, []model.FrameType{model.FrameIntent, model.FrameError}, rec.types())
	assert.Equal(t, "data_fetch_failure", rec.last().ErrorType)
	assert.Equal(t, fetchTimeoutResponse, rec.last().Response)

	select {
	case <-searcher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch was not cancelled after timeout")
	}
	assert.True(t, searcher.wasCancelled())
}

func TestStreamChat_FetchError(t *testing.T) {
	p := newTestPipeline(t,
		&fakePlanner{plan: searchPlan("", false)},
		&fakeSearcher{err: errors.New(errors.KindDataFetch, "exact tier query failed", fmt.Errorf("refused"))},
		nil, &fakeNarrator{},
	)

	rec := &recorder{}
	err := p.StreamChat(context.Background(), "2 bed", nil, rec.emit)
	require.Error(t, err)
	assert.Equal(t, errors.KindDataFetch, errors.KindOf(err))
	assert.Equal(t, fetchFailureResponse, rec.last().Response)
	assert.NotContains(t, rec.last().Response, "refused")
}

func TestStreamChat_NarratorFallback(t *testing.T) {
	tests := []struct {
		name   string
		filter model.Filter
		want   string
	}{
		{"area", model.Filter{City: "Dubai", Area: "Marina"}, "Layla, I have curated 2 options in Marina."},
		{"city", model.Filter{City: "Dubai"}, "Layla, I have curated 2 options in Dubai."},
		{"none", model.Filter{}, "Layla, I have curated 2 options in the UAE."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &model.ChatPlan{Type: model.PlanSearch, SearchPlan: &model.SearchPlan{Primary: tt.filter}}
			p := newTestPipeline(t,
				&fakePlanner{plan: plan},
				&fakeSearcher{outcome: twoResults()},
				nil,
				&fakeNarrator{err: fmt.Errorf("stream broke")},
			)

			rec := &recorder{}
			session := &model.SessionContext{UserName: "Layla"}
			require.NoError(t, p.StreamChat(context.Background(), "2 bed", session, rec.emit))

			assert.Equal(t, []model.FrameType{
				model.FrameIntent, model.FrameResults, model.FrameTextChunk, model.FrameFinal,
			}, rec.types())
			assert.Equal(t, tt.want, rec.frames[2].Content)
		})
	}
}

func TestStreamChat_NarratorFailsMidStream(t *testing.T) {
	p := newTestPipeline(t,
		&fakePlanner{plan: searchPlan("", false)},
		&fakeSearcher{outcome: twoResults()},
		nil,
		&fakeNarrator{chunks: []string{"Based on"}, err: fmt.Errorf("stream broke")},
	)

	rec := &recorder{}
	session := &model.SessionContext{UserName: "Layla"}
	require.NoError(t, p.StreamChat(context.Background(), "2 bed", session, rec.emit))

	assert.Equal(t, []model.FrameType{
		model.FrameIntent,
		model.FrameResults,
		model.FrameTextChunk,
		model.FrameTextChunk,
		model.FrameFinal,
	}, rec.types())
	assert.Equal(t, "Based on", rec.frames[2].Content)
	assert.Equal(t, "Layla, I have curated 2 options in Marina.", rec.frames[3].Content)
}

func TestStreamChat_MultibyteHistory(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"runes that grow when lowercased", "ȺȺȺȺȺȺȺȺȺȺȺȺȺȺ my name is Ziad", "Ziad, I have curated 2 options in Marina."},
		{"runes that shrink when lowercased", "ẞẞẞẞ My name is Ana", "Ana, I have curated 2 options in Marina."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t,
				&fakePlanner{plan: searchPlan("", false)},
				&fakeSearcher{outcome: twoResults()},
				nil,
				&fakeNarrator{err: fmt.Errorf("stream broke")},
			)

			rec := &recorder{}
			session := &model.SessionContext{History: []model.ChatMessage{{Role: "user", Content: tt.content}}}
			require.NotPanics(t, func() {
				require.NoError(t, p.StreamChat(context.Background(), "2 bed", session, rec.emit))
			})
			assert.Equal(t, model.FrameFinal, rec.last().Type)
			assert.Equal(t, tt.want, rec.frames[2].Content)
		})
	}
}

func TestStreamChat_StatsNoData(t *testing.T) {
	tests := []struct {
		name   string
		filter model.Filter
		want   string
	}{
		{"area and city", model.Filter{City: "Dubai", Area: "Marina"}, "No active listings found for Marina, Dubai."},
		{"city", model.Filter{City: "Sharjah"}, "No active listings found for Sharjah."},
		{"market wide", model.Filter{}, "No active listings found for the UAE."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t,
				&fakePlanner{plan: &model.ChatPlan{
					Type:       model.PlanStats,
					SearchPlan: &model.SearchPlan{Primary: tt.filter},
				}},
				&fakeSearcher{}, &fakeMarketStats{}, &fakeNarrator{stats: "unused"},
			)

			rec := &recorder{}
			require.NoError(t, p.StreamChat(context.Background(), "prices", nil, rec.emit))

			assert.Equal(t, []model.FrameType{model.FrameStats, model.FrameFinal}, rec.types())
			frame := rec.frames[0]
			assert.Nil(t, frame.Stats)
			assert.Equal(t, tt.want, frame.Response)
			assert.Empty(t, frame.Comparison)

			raw, err := json.Marshal(frame)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `"stats":null`)
		})
	}
}

func TestStreamChat_EmitErrorStops(t *testing.T) {
	gone := fmt.Errorf("client gone")

	for failAt := 0; failAt < 4; failAt++ {
		t.Run(fmt.Sprintf("fail at frame %d", failAt), func(t *testing.T) {
			p := newTestPipeline(t,
				&fakePlanner{plan: searchPlan("Looking.", false)},
				&fakeSearcher{outcome: twoResults()},
				nil,
				&fakeNarrator{chunks: []string{"a", "b"}},
			)

			rec := &recorder{failAt: failAt, err: gone}
			err := p.StreamChat(context.Background(), "2 bed", nil, rec.emit)
			require.ErrorIs(t, err, gone)
			assert.Len(t, rec.frames, failAt)
		})
	}
}

func TestStreamChat_DisconnectLeavesFetchRunning(t *testing.T) {
	searcher := &fakeSearcher{
		outcome: twoResults(),
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	p := newTestPipeline(t,
		&fakePlanner{plan: searchPlan("", false)},
		searcher, nil, &fakeNarrator{},
		WithFetchTimeout(5*time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.StreamChat(ctx, "2 bed", nil, rec.emit)
	}()

	require.Eventually(t, func() bool {
		return len(rec.types()) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after disconnect")
	}

	close(searcher.release)
	<-searcher.done
	assert.False(t, searcher.wasCancelled())
	assert.Equal(t, []model.FrameType{model.FrameIntent}, rec.types())
}

// stubbornSearcher ignores cancellation and returns only once released
type stubbornSearcher struct {
	release chan struct{}
}

func (s *stubbornSearcher) Search(context.Context, model.SearchPlan, int, int, *model.ExclusionSet) (*model.SearchOutcome, error) {
	<-s.release
	return twoResults(), nil
}

func TestStreamChat_SaturatedPool(t *testing.T) {
	searcher := &stubbornSearcher{release: make(chan struct{})}
	p := newTestPipeline(t,
		&fakePlanner{plan: searchPlan("", false)},
		searcher, nil, &fakeNarrator{},
		WithWorkers(1),
		WithFetchTimeout(100*time.Millisecond),
	)
	defer close(searcher.release)

	// the first request holds the only worker past its deadline
	first := &recorder{}
	require.Error(t, p.StreamChat(context.Background(), "one", nil, first.emit))

	// queued behind it, the second request spends its whole budget waiting
	second := &recorder{}
	err := p.StreamChat(context.Background(), "two", nil, second.emit)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFetchTimeout)
	assert.Equal(t, []model.FrameType{model.FrameIntent, model.FrameError}, second.types())
}
