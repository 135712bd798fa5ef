// Package orchestrator runs the quality-gated answer workflow: rewrite,
// retrieve, evaluate, then either answer directly or supplement with web
// results, merge, re-evaluate and answer. Every collaborator failure has a
// defined degraded transition, so a valid query always reaches DONE with an
// answer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/generate"
	"github.com/Aman-CERP/lawrag/internal/metrics"
	"github.com/Aman-CERP/lawrag/internal/quality"
	"github.com/Aman-CERP/lawrag/internal/resilience"
	"github.com/Aman-CERP/lawrag/internal/rewrite"
	"github.com/Aman-CERP/lawrag/internal/search"
	"github.com/Aman-CERP/lawrag/internal/websearch"
)

// Validator rejects queries that must not enter the workflow.
type Validator interface {
	Validate(query string) error
}

// Rewriter expands a query. On error it still returns usable queries.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) (primary string, alternatives []string, err error)
}

// Retriever runs hybrid retrieval for one or more queries.
type Retriever interface {
	RetrieveAll(ctx context.Context, queries []string) (*search.Retrieval, error)
}

// Evaluator is the quality gate.
type Evaluator interface {
	Evaluate(ctx context.Context, query string, documents []string) quality.Verdict
}

// Generator drafts the final answer.
type Generator interface {
	Generate(ctx context.Context, query string, documents []string) (generate.Answer, error)
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, r *Result) error
}

// Dependencies wires an Orchestrator. Validator, Retriever, Evaluator and
// Generator are required.
type Dependencies struct {
	Validator Validator
	Rewriter  Rewriter
	Retriever Retriever
	Evaluator Evaluator
	WebSearch websearch.Searcher
	Generator Generator

	Guard            *resilience.Guard
	WebSearchTimeout time.Duration
	Metrics          *metrics.Metrics
	Recorder         Recorder
}

// Orchestrator is safe for concurrent use; each Answer call owns its state.
type Orchestrator struct {
	deps Dependencies
}

// New validates deps. A nil Rewriter keeps the original query and a nil
// WebSearch returns no web results.
func New(deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Validator == nil:
		return nil, errors.New("orchestrator: validator is required")
	case deps.Retriever == nil:
		return nil, errors.New("orchestrator: retriever is required")
	case deps.Evaluator == nil:
		return nil, errors.New("orchestrator: evaluator is required")
	case deps.Generator == nil:
		return nil, errors.New("orchestrator: generator is required")
	}
	if deps.WebSearch == nil {
		deps.WebSearch = websearch.None{}
	}
	return &Orchestrator{deps: deps}, nil
}

// Answer runs the workflow for query. Only an invalid query returns an
// error; every other failure degrades and the result always carries a
// final answer.
func (o *Orchestrator) Answer(ctx context.Context, query string) (*Result, error) {
	if err := o.deps.Validator.Validate(query); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := slog.With(slog.String("run_id", runID))

	ws := &WorkflowState{OriginalQuery: query}
	for state := StateRewrite; state != StateDone; {
		stepStart := time.Now()
		ws.Trace = append(ws.Trace, state)
		next := o.step(ctx, logger, state, ws)
		o.deps.Metrics.ObserveStage(string(state), time.Since(stepStart))
		state = next
	}
	ws.Trace = append(ws.Trace, StateDone)

	res := &Result{
		RunID:            runID,
		Query:            query,
		FinalAnswer:      ws.FinalAnswer,
		PrimaryQuality:   ws.PrimaryQuality,
		SecondaryQuality: ws.SecondaryQuality,
		UsedFallback:     ws.UsedFallback(),
		Insufficient:     ws.Insufficient,
		GenerationFailed: ws.GenerationFailed,
		RewrittenQueries: ws.RewrittenQueries,
		Evidence:         answerEvidence(ws),
		WebResults:       len(ws.WebHits),
		Degradations:     ws.Degradations,
		Trace:            ws.Trace,
		Duration:         time.Since(start),
	}

	o.deps.Metrics.ObserveAnswer(res.Path(), res.Outcome())
	for _, d := range res.Degradations {
		o.deps.Metrics.ObserveDegradation(d)
	}
	if o.deps.Recorder != nil {
		if err := o.deps.Recorder.Record(ctx, res); err != nil {
			logger.Warn("telemetry_record_failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("answer_completed",
		slog.String("path", res.Path()),
		slog.String("outcome", res.Outcome()),
		slog.Float64("primary_total", res.PrimaryQuality.Total()),
		slog.Int("evidence", len(res.Evidence)),
		slog.Any("degradations", res.Degradations),
		slog.Duration("duration", res.Duration))

	return res, nil
}

// step runs one state and returns the next. It never fails: errors become
// degradations.
func (o *Orchestrator) step(ctx context.Context, logger *slog.Logger, state State, ws *WorkflowState) State {
	switch state {
	case StateRewrite:
		o.rewrite(ctx, logger, ws)
		return StateRetrieve

	case StateRetrieve:
		o.retrieve(ctx, logger, ws)
		return StateEvaluate

	case StateEvaluate:
		ws.PrimaryQuality = o.deps.Evaluator.Evaluate(ctx, ws.OriginalQuery, FormatEvidence(LocalEvidence(ws.LocalHits)))
		o.deps.Metrics.ObserveQuality("primary", ws.PrimaryQuality.Total())
		if ws.PrimaryQuality.Passed() {
			return StateDirectAnswer
		}
		return StateWebFallback

	case StateDirectAnswer:
		return StateFinalize

	case StateWebFallback:
		o.webSearch(ctx, logger, ws)
		return StateMerge

	case StateMerge:
		ws.MergedHits = Merge(LocalEvidence(ws.LocalHits), WebEvidence(ws.WebHits))
		return StateReEvaluate

	case StateReEvaluate:
		// Advisory: the verdict is recorded but never changes the branch.
		v := o.deps.Evaluator.Evaluate(ctx, ws.OriginalQuery, FormatEvidence(ws.MergedHits))
		ws.SecondaryQuality = &v
		o.deps.Metrics.ObserveQuality("secondary", v.Total())
		return StateFinalize

	case StateFinalize:
		o.finalize(ctx, logger, ws)
		return StateDone
	}

	// Unreachable with the states above.
	logger.Error("unknown_workflow_state", slog.String("state", string(state)))
	ws.FinalAnswer = generate.ApologyMessage
	ws.GenerationFailed = true
	return StateDone
}

func (o *Orchestrator) rewrite(ctx context.Context, logger *slog.Logger, ws *WorkflowState) {
	queries := []string{ws.OriginalQuery}
	if o.deps.Rewriter != nil {
		primary, alternatives, err := o.deps.Rewriter.Rewrite(ctx, ws.OriginalQuery)
		if err != nil {
			logger.Warn("rewrite_failed", lrerrors.LogAttrs(err)...)
			ws.degrade(DegradedRewrite)
		}
		queries = rewrite.All(primary, alternatives)
	}

	// Rewrites that would not pass validation are dropped.
	valid := make([]string, 0, len(queries))
	for _, q := range queries {
		if o.deps.Validator.Validate(q) == nil {
			valid = append(valid, q)
		}
	}
	if len(valid) == 0 {
		valid = []string{ws.OriginalQuery}
	}
	ws.RewrittenQueries = valid
}

func (o *Orchestrator) retrieve(ctx context.Context, logger *slog.Logger, ws *WorkflowState) {
	r, err := o.deps.Retriever.RetrieveAll(ctx, ws.RewrittenQueries)
	if err != nil {
		logger.Warn("retrieval_failed", lrerrors.LogAttrs(err)...)
		ws.degrade(DegradedRetrieval)
		ws.LocalHits = []search.Hit{}
		return
	}
	ws.LocalHits = r.Hits
	ws.degrade(r.Degradations...)
}

func (o *Orchestrator) webSearch(ctx context.Context, logger *slog.Logger, ws *WorkflowState) {
	logger.Info("web_fallback_triggered",
		slog.String("verdict", string(ws.PrimaryQuality.Kind)),
		slog.Float64("primary_total", ws.PrimaryQuality.Total()))

	query := ws.RewrittenQueries[0]
	results, err := resilience.Call(ctx, o.deps.Guard, resilience.WebSearch, o.deps.WebSearchTimeout,
		func(ctx context.Context) ([]websearch.Result, error) {
			return o.deps.WebSearch.Search(ctx, query)
		})
	if err != nil {
		werr := lrerrors.New(lrerrors.ErrCodeWebSearchUnavailable, "web search failed", err).
			WithDetail("reason", resilience.Reason(err))
		logger.Warn("web_search_failed", lrerrors.LogAttrs(werr)...)
		ws.degrade(DegradedWebSearch)
		results = nil
	}
	if results == nil {
		results = []websearch.Result{}
	}
	ws.WebHits = results
}

func (o *Orchestrator) finalize(ctx context.Context, logger *slog.Logger, ws *WorkflowState) {
	ans, err := o.deps.Generator.Generate(ctx, ws.OriginalQuery, FormatEvidence(answerEvidence(ws)))
	if err != nil {
		logger.Warn("generation_failed", lrerrors.LogAttrs(err)...)
		ws.degrade(DegradedGeneration)
		ws.FinalAnswer = generate.ApologyMessage
		ws.GenerationFailed = true
		return
	}
	ws.FinalAnswer = ans.Text
	ws.Insufficient = ans.Insufficient
	if ws.FinalAnswer == "" {
		ws.FinalAnswer = generate.InsufficientMessage
		ws.Insufficient = true
	}
}

// answerEvidence is the evidence the answer is drafted from: merged on the
// fallback path, local otherwise.
func answerEvidence(ws *WorkflowState) []Evidence {
	if ws.UsedFallback() {
		return ws.MergedHits
	}
	return LocalEvidence(ws.LocalHits)
}

// String summarizes the run for logs.
func (r *Result) String() string {
	return fmt.Sprintf("%s %s/%s %v", r.RunID, r.Path(), r.Outcome(), r.Trace)
}
