package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"houser/internal/errors"
	"houser/internal/logger"
	"houser/internal/metrics"
	"houser/internal/model"
)

const (
	defaultPipelineWorkers = 10
	defaultFetchTimeout    = 7 * time.Second
	defaultChatPageSize    = 10
)

// User-facing failure sentences
const (
	planningFailureResponse  = "Sorry, I couldn't understand that request. Could you rephrase it?"
	fetchTimeoutResponse     = "The property search took too long to respond. Please try again."
	fetchFailureResponse     = "I couldn't retrieve listings right now. Please try again shortly."
	statsFetchFailureMessage = "I couldn't retrieve market data right now. Please try again shortly."
	noMarketDataResponse     = "No active listings found for %s."
)

// pipelineState is a step of one chat request
type pipelineState int

const (
	statePlanning pipelineState = iota
	stateInfoTerminal
	stateStatsTerminal
	stateSearchFlow
	stateNarrating
	stateDone
	stateError
)

func (s pipelineState) String() string {
	switch s {
	case statePlanning:
		return "planning"
	case stateInfoTerminal:
		return "info_terminal"
	case stateStatsTerminal:
		return "stats_terminal"
	case stateSearchFlow:
		return "search_flow"
	case stateNarrating:
		return "narrating"
	case stateDone:
		return "done"
	case stateError:
		return "error"
	default:
		return "unknown"
	}
}

// Pipeline answers one chat message with a stream of frames: a plan, a
// background data fetch bounded by a timeout, then a streamed narrative
type Pipeline struct {
	planner      PlanExtractor
	searcher     Searcher
	stats        MarketStats
	narrator     Narrator
	pool         *ants.Pool
	workers      int
	fetchTimeout time.Duration
	pageSize     int
	metrics      *metrics.Metrics
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithFetchTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

func WithChatPageSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline creates a pipeline and its worker pool. Call Release when done.
func NewPipeline(planner PlanExtractor, searcher Searcher, stats MarketStats, narrator Narrator, opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		planner:      planner,
		searcher:     searcher,
		stats:        stats,
		narrator:     narrator,
		workers:      defaultPipelineWorkers,
		fetchTimeout: defaultFetchTimeout,
		pageSize:     defaultChatPageSize,
	}
	for _, opt := range opts {
		opt(p)
	}

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	p.pool = pool

	return p, nil
}

// Release stops the worker pool
func (p *Pipeline) Release() {
	p.pool.Release()
}

// chatRun holds the state of one StreamChat call
type chatRun struct {
	p       *Pipeline
	ctx     context.Context
	message string
	session *model.SessionContext
	emit    func(model.Frame) error

	plan    *model.ChatPlan
	outcome *model.SearchOutcome
	failure *errors.Error
	reply   string
}

// StreamChat answers message, passing frames to emit in order. The last
// frame is either final or error, unless emit fails or ctx ends first; then
// no further frames are sent and that error is returned. When an error frame
// is sent, the classified failure is returned.
func (p *Pipeline) StreamChat(ctx context.Context, message string, session *model.SessionContext, emit func(model.Frame) error) error {
	if session == nil {
		session = &model.SessionContext{}
	}

	r := &chatRun{p: p, ctx: ctx, message: message, session: session, emit: emit}
	log := logger.FromContext(ctx)

	state := statePlanning
	for {
		var (
			next pipelineState
			err  error
		)

		switch state {
		case statePlanning:
			next, err = r.planning()
		case stateInfoTerminal:
			next, err = stateDone, nil
		case stateStatsTerminal:
			next, err = r.statsTerminal()
		case stateSearchFlow:
			next, err = r.searchFlow()
		case stateNarrating:
			next, err = r.narrating()
		case stateDone:
			return r.done()
		case stateError:
			return r.fail()
		}

		if err != nil {
			log.Debug("chat stream stopped", "state", state.String(), "error", err)
			return err
		}
		state = next
	}
}

// send emits f unless the caller has gone away
func (r *chatRun) send(f model.Frame) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if err := r.emit(f); err != nil {
		return err
	}
	r.p.metrics.Frame(string(f.Type))
	return nil
}

func (r *chatRun) planning() (pipelineState, error) {
	plan, err := r.p.planner.Extract(r.ctx, r.message, r.session)
	switch {
	case err != nil:
		r.failure = errors.New(errors.KindPlanning, "plan extraction failed", err)
		return stateError, nil
	case plan == nil || plan.Type == "":
		r.failure = errors.New(errors.KindPlanning, "plan is missing type", nil)
		return stateError, nil
	case plan.Type == model.PlanError:
		r.failure = errors.New(errors.KindPlanning, "planner reported an error", nil)
		r.reply = plan.Response
		return stateError, nil
	}

	r.plan = plan
	logger.FromContext(r.ctx).Debug("chat plan", "type", plan.Type, "thought", plan.Thought)

	var next pipelineState
	switch plan.Type {
	case model.PlanInfo, model.PlanClarification:
		next = stateInfoTerminal
	case model.PlanStats:
		next = stateStatsTerminal
	case model.PlanSearch:
		next = stateSearchFlow
	default:
		r.failure = errors.New(errors.KindPlanning, "unknown plan type "+plan.Type, nil)
		return stateError, nil
	}

	if plan.Response != "" {
		if err := r.send(model.Frame{Type: model.FrameTextChunk, Content: plan.Response + " "}); err != nil {
			return stateError, err
		}
	}
	return next, nil
}

func (r *chatRun) statsTerminal() (pipelineState, error) {
	scope := r.plan.Primary().Scope()

	snapshot, err := runFetch(r, "stats", func(ctx context.Context) (*model.StatsSnapshot, error) {
		return r.p.stats.FromMarket(ctx, scope)
	})
	if err != nil {
		return r.fetchFailed(err, statsFetchFailureMessage)
	}

	var narrative string
	if snapshot == nil {
		narrative = fmt.Sprintf(noMarketDataResponse, scopeLabel(scope))
	} else {
		narrative = r.p.narrator.NarrateStats(r.ctx, r.message, snapshot, r.session)
	}

	frame := model.Frame{
		Type:       model.FrameStats,
		Stats:      snapshot,
		Response:   narrative,
		Comparison: buildComparisonTable(snapshot),
		TableTitle: comparisonTableTitle,
	}
	if err := r.send(frame); err != nil {
		return stateError, err
	}
	return stateDone, nil
}

func (r *chatRun) searchFlow() (pipelineState, error) {
	plan := model.SearchPlan{}
	if r.plan.SearchPlan != nil {
		plan = *r.plan.SearchPlan
	}
	page := r.session.CurrentPage()
	exclusions := r.session.Exclusions()

	outcome, err := runFetchNotify(r, "search", func(ctx context.Context) (*model.SearchOutcome, error) {
		return r.p.searcher.Search(ctx, plan, page, r.p.pageSize, exclusions)
	}, func() error {
		primary := plan.Primary
		return r.send(model.Frame{Type: model.FrameIntent, Filters: &primary})
	})
	if err != nil {
		return r.fetchFailed(err, fetchFailureResponse)
	}

	if outcome == nil {
		outcome = &model.SearchOutcome{Results: []model.ResultItem{}}
	}
	r.outcome = outcome
	return stateNarrating, nil
}

// fetchFailed routes a fetch error: caller disconnects stop the stream,
// everything else becomes a data fetch failure
func (r *chatRun) fetchFailed(err error, response string) (pipelineState, error) {
	var stopped *streamStopped
	if errors.As(err, &stopped) {
		return stateError, stopped.err
	}

	r.reply = response
	if errors.Is(err, errors.ErrFetchTimeout) {
		r.reply = fetchTimeoutResponse
	}
	r.failure = errors.New(errors.KindDataFetch, "data fetch failed", err)
	return stateError, nil
}

func (r *chatRun) narrating() (pipelineState, error) {
	outcome := r.outcome
	if err := r.send(model.Frame{Type: model.FrameResults, Outcome: outcome}); err != nil {
		return stateError, err
	}

	primary := r.plan.Primary()
	name := r.session.DisplayName()

	var emitErr error
	narrErr := r.p.narrator.Narrate(r.ctx, NarrationRequest{
		Message:        r.message,
		Results:        outcome.Results,
		Filter:         primary,
		IsFallback:     outcome.IsFallback,
		IsSupplemented: outcome.IsSupplemented,
		UserName:       name,
	}, func(chunk string) error {
		if err := r.send(model.Frame{Type: model.FrameTextChunk, Content: chunk}); err != nil {
			emitErr = err
			return err
		}
		return nil
	})

	if emitErr != nil {
		return stateError, emitErr
	}
	if narrErr != nil {
		if err := r.ctx.Err(); err != nil {
			return stateError, err
		}
		logger.FromContext(r.ctx).Warn("narrative failed, using template",
			"kind", errors.KindNarrative.String(), "error", narrErr)

		area := firstNonBlank(primary.Area, primary.City, "the UAE")
		sentence := fmt.Sprintf("%s, I have curated %d options in %s.", name, len(outcome.Results), area)
		if err := r.send(model.Frame{Type: model.FrameTextChunk, Content: sentence}); err != nil {
			return stateError, err
		}
	}

	return stateDone, nil
}

func (r *chatRun) done() error {
	frame := model.Frame{Type: model.FrameFinal}
	if r.plan != nil && r.plan.WantsTable && r.outcome != nil && len(r.outcome.Results) > 0 {
		frame.Summary = buildSummaryTable(r.outcome.Results)
		frame.TableTitle = summaryTableTitle
	}
	return r.send(frame)
}

func (r *chatRun) fail() error {
	failure := r.failure
	if failure == nil {
		failure = errors.New(errors.KindUnknown, "chat failed", nil)
	}

	response := r.reply
	if response == "" {
		response = planningFailureResponse
	}

	if err := r.send(model.Frame{
		Type:      model.FrameError,
		Response:  response,
		ErrorType: failure.Kind.FrameTag(),
	}); err != nil {
		return err
	}
	return failure
}

// streamStopped wraps an emit or context error raised while a fetch was pending
type streamStopped struct {
	err error
}

func (s *streamStopped) Error() string { return "stream stopped: " + s.err.Error() }
func (s *streamStopped) Unwrap() error { return s.err }

type fetchResult[T any] struct {
	value T
	err   error
}

func runFetch[T any](r *chatRun, kind string, fn func(ctx context.Context) (T, error)) (T, error) {
	return runFetchNotify(r, kind, fn, nil)
}

// runFetchNotify runs fn on the worker pool and waits up to the fetch
// timeout, which covers time spent queued for a worker. notify, if set, runs
// right after submission. The fetch context is detached from the request: a
// caller disconnect leaves the fetch running and discards its result, while a
// timeout cancels it.
func runFetchNotify[T any](r *chatRun, kind string, fn func(ctx context.Context) (T, error), notify func() error) (T, error) {
	var zero T
	p := r.p
	started := time.Now()

	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(r.ctx))
	results := make(chan fetchResult[T], 1)

	go func() {
		err := p.pool.Submit(func() {
			defer cancel()
			v, err := fn(fetchCtx)
			results <- fetchResult[T]{value: v, err: err}
		})
		if err != nil {
			cancel()
			results <- fetchResult[T]{err: fmt.Errorf("submit %s fetch: %w", kind, err)}
		}
	}()

	timer := time.NewTimer(p.fetchTimeout)
	defer timer.Stop()

	if notify != nil {
		if err := notify(); err != nil {
			return zero, &streamStopped{err: err}
		}
	}

	select {
	case res := <-results:
		if res.err != nil {
			p.metrics.Fetch(kind, "error", time.Since(started))
			return zero, res.err
		}
		p.metrics.Fetch(kind, "ok", time.Since(started))
		return res.value, nil
	case <-timer.C:
		cancel()
		p.metrics.Fetch(kind, "timeout", time.Since(started))
		return zero, fmt.Errorf("%s after %s: %w", kind, p.fetchTimeout, errors.ErrFetchTimeout)
	case <-r.ctx.Done():
		return zero, &streamStopped{err: r.ctx.Err()}
	}
}

// scopeLabel names a stats scope for users, e.g. "Marina, Dubai"
func scopeLabel(scope model.StatsScope) string {
	var parts []string
	for _, v := range []string{scope.Area, scope.City} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "the UAE"
	}
	return strings.Join(parts, ", ")
}
