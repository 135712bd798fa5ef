package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/generate"
	"github.com/Aman-CERP/lawrag/internal/metrics"
	"github.com/Aman-CERP/lawrag/internal/quality"
	"github.com/Aman-CERP/lawrag/internal/search"
	"github.com/Aman-CERP/lawrag/internal/store"
	"github.com/Aman-CERP/lawrag/internal/websearch"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeRetriever struct {
	hits    []search.Hit
	err     error
	queries [][]string
	mu      sync.Mutex
}

func (f *fakeRetriever) RetrieveAll(_ context.Context, queries []string) (*search.Retrieval, error) {
	f.mu.Lock()
	f.queries = append(f.queries, queries)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &search.Retrieval{Query: queries[0], Hits: f.hits}, nil
}

// fakeEvaluator returns verdicts in order; the last one repeats.
type fakeEvaluator struct {
	verdicts []quality.Verdict
	mu       sync.Mutex
	calls    [][]string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ string, docs []string) quality.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(len(f.calls), len(f.verdicts)-1)
	f.calls = append(f.calls, docs)
	return f.verdicts[i]
}

type fakeGenerator struct {
	err  error
	mu   sync.Mutex
	docs []string
}

func (f *fakeGenerator) Generate(_ context.Context, query string, docs []string) (generate.Answer, error) {
	f.mu.Lock()
	f.docs = docs
	f.mu.Unlock()
	if f.err != nil {
		return generate.Answer{}, f.err
	}
	if len(docs) == 0 {
		return generate.Insufficient(), nil
	}
	return generate.Answer{Text: "答复：" + query}, nil
}

type fakeRewriter struct {
	primary string
	alts    []string
	err     error
}

func (f fakeRewriter) Rewrite(_ context.Context, query string) (string, []string, error) {
	if f.err != nil {
		return query, nil, f.err
	}
	return f.primary, f.alts, nil
}

type webFunc func(ctx context.Context, query string) ([]websearch.Result, error)

func (f webFunc) Search(ctx context.Context, query string) ([]websearch.Result, error) {
	return f(ctx, query)
}

type recorder struct{ results []*Result }

func (r *recorder) Record(_ context.Context, res *Result) error {
	r.results = append(r.results, res)
	return nil
}

func pass() quality.Verdict { return quality.Parsed(quality.NewScore(9, 9, 8, 8, 0.8)) }
func fail28() quality.Verdict {
	return quality.Parsed(quality.NewScore(7, 7, 7, 7, 0.8))
}

func localHits() []search.Hit {
	return []search.Hit{{
		FusedHit: search.FusedHit{DocID: 1079, Score: 0.9},
		Document: &store.Document{ID: 1079, Text: "夫妻一方要求离婚的，可以由有关组织进行调解，也可以直接向人民法院提起离婚诉讼。",
			Metadata: map[string]string{store.MetaLaw: "《民法典》", store.MetaArticle: "第一千零七十九条"}},
	}}
}

type fixture struct {
	retriever *fakeRetriever
	evaluator *fakeEvaluator
	generator *fakeGenerator
	recorder  *recorder
	deps      Dependencies
}

func newFixture(verdicts ...quality.Verdict) *fixture {
	f := &fixture{
		retriever: &fakeRetriever{hits: localHits()},
		evaluator: &fakeEvaluator{verdicts: verdicts},
		generator: &fakeGenerator{},
		recorder:  &recorder{},
	}
	f.deps = Dependencies{
		Validator: search.NewQueryClassifier(0, 64),
		Retriever: f.retriever,
		Evaluator: f.evaluator,
		Generator: f.generator,
		WebSearch: websearch.None{},
		Metrics:   metrics.New(),
		Recorder:  f.recorder,
	}
	return f
}

func (f *fixture) answer(t *testing.T, query string) *Result {
	t.Helper()
	o, err := New(f.deps)
	require.NoError(t, err)
	res, err := o.Answer(context.Background(), query)
	require.NoError(t, err)
	return res
}

func countState(trace []State, s State) int {
	n := 0
	for _, st := range trace {
		if st == s {
			n++
		}
	}
	return n
}

// =============================================================================
// Branching
// =============================================================================

func TestAnswer_DirectPath(t *testing.T) {
	f := newFixture(pass())

	res := f.answer(t, "离婚需要什么条件")

	assert.False(t, res.UsedFallback)
	assert.Nil(t, res.SecondaryQuality)
	assert.True(t, res.PrimaryQuality.Passed())
	assert.Equal(t, "答复：离婚需要什么条件", res.FinalAnswer)
	assert.Equal(t, []State{StateRewrite, StateRetrieve, StateEvaluate, StateDirectAnswer, StateFinalize, StateDone}, res.Trace)
	assert.Len(t, f.evaluator.calls, 1)
	require.Len(t, f.generator.docs, 1)
	assert.Contains(t, f.generator.docs[0], "【检索结果 1】")
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "direct", res.Path())
}

func TestAnswer_FallbackWithEmptyWebStillFinalizes(t *testing.T) {
	// Given: a 28/40 judgment with the 0.8 threshold and no web results
	f := newFixture(fail28())

	res := f.answer(t, "离婚需要什么条件")

	// Then: the fallback branch runs once and an answer is returned
	assert.Equal(t, 28.0, res.PrimaryQuality.Total())
	assert.False(t, res.PrimaryQuality.Passed())
	assert.True(t, res.UsedFallback)
	require.NotNil(t, res.SecondaryQuality)
	assert.NotEmpty(t, res.FinalAnswer)
	assert.Equal(t, 0, res.WebResults)
	assert.Equal(t, []State{
		StateRewrite, StateRetrieve, StateEvaluate, StateWebFallback,
		StateMerge, StateReEvaluate, StateFinalize, StateDone,
	}, res.Trace)
	assert.Len(t, f.evaluator.calls, 2)
}

func TestAnswer_MalformedJudgmentTriggersFallback(t *testing.T) {
	// Given: a real gate whose judge reports an out-of-range sub-score
	f := newFixture()
	judge := judgeText("相关性：15/10分\n完整性：9/10分\n准确性：9/10分\n覆盖面：9/10分")
	f.deps.Evaluator = quality.NewGate(judge, nil, quality.GateConfig{Threshold: 0.8})

	res := f.answer(t, "离婚需要什么条件")

	assert.True(t, res.PrimaryQuality.IsMalformed())
	assert.Equal(t, lrerrors.ErrCodeMalformedEvaluation, res.PrimaryQuality.Code)
	assert.True(t, res.UsedFallback)
	assert.NotEmpty(t, res.FinalAnswer)
}

func TestAnswer_SecondaryVerdictIsAdvisory(t *testing.T) {
	for _, secondary := range []quality.Verdict{pass(), fail28(), quality.Malformed(lrerrors.ErrCodeMalformedEvaluation, "x")} {
		t.Run(string(secondary.Kind), func(t *testing.T) {
			f := newFixture(fail28(), secondary)

			res := f.answer(t, "离婚需要什么条件")

			// Then: EVALUATE is never revisited and FINALIZE runs once
			assert.Equal(t, 1, countState(res.Trace, StateEvaluate))
			assert.Equal(t, 1, countState(res.Trace, StateWebFallback))
			assert.Equal(t, 1, countState(res.Trace, StateFinalize))
			assert.Equal(t, StateDone, res.Trace[len(res.Trace)-1])
			assert.Equal(t, secondary, *res.SecondaryQuality)
			assert.NotEmpty(t, res.FinalAnswer)
		})
	}
}

func TestAnswer_FallbackMergesWebResults(t *testing.T) {
	f := newFixture(fail28(), pass())
	f.deps.WebSearch = websearch.NewStatic([]websearch.Result{
		{Title: "重复", Snippet: "夫妻一方要求离婚的，可以由有关组织进行调解，也可以直接向人民法院提起离婚诉讼。", URL: "https://dup"},
		{Title: "离婚诉讼指南", Snippet: "感情确已破裂，调解无效的，应当准予离婚。", URL: "https://new"},
	}, 5)

	res := f.answer(t, "离婚需要什么条件")

	assert.Equal(t, 2, res.WebResults)
	require.Len(t, res.Evidence, 2)
	assert.Equal(t, SourceLocal, res.Evidence[0].Source)
	assert.Equal(t, "https://new", res.Evidence[1].URL)
	// The re-evaluation and the generator both see the merged set
	assert.Len(t, f.evaluator.calls[1], 2)
	assert.Len(t, f.generator.docs, 2)
	assert.Contains(t, f.generator.docs[1], "【网络结果 1】离婚诉讼指南")
}

// =============================================================================
// Degradation
// =============================================================================

func TestAnswer_WebSearchFailure(t *testing.T) {
	f := newFixture(fail28())
	f.deps.WebSearch = webFunc(func(context.Context, string) ([]websearch.Result, error) {
		return nil, errors.New("serpapi 500")
	})

	res := f.answer(t, "离婚需要什么条件")

	assert.True(t, res.UsedFallback)
	assert.Contains(t, res.Degradations, DegradedWebSearch)
	assert.Equal(t, StateDone, res.Trace[len(res.Trace)-1])
	assert.NotEmpty(t, res.FinalAnswer)
}

func TestAnswer_GenerationFailureReturnsApology(t *testing.T) {
	f := newFixture(pass())
	f.generator.err = lrerrors.New(lrerrors.ErrCodeGenerationFailed, "down", nil)

	res := f.answer(t, "离婚需要什么条件")

	assert.Equal(t, generate.ApologyMessage, res.FinalAnswer)
	assert.True(t, res.GenerationFailed)
	assert.Equal(t, "apology", res.Outcome())
	assert.Contains(t, res.Degradations, DegradedGeneration)
}

func TestAnswer_RetrievalFailureStillAnswers(t *testing.T) {
	f := newFixture(fail28())
	f.retriever.err = lrerrors.New(lrerrors.ErrCodeSearchFailed, "both paths failed", nil)

	res := f.answer(t, "离婚需要什么条件")

	assert.Contains(t, res.Degradations, DegradedRetrieval)
	assert.Empty(t, f.evaluator.calls[0])
	assert.True(t, res.Insufficient)
	assert.Equal(t, generate.InsufficientMessage, res.FinalAnswer)
}

func TestAnswer_RetrievalDegradationsAreReported(t *testing.T) {
	f := newFixture(pass())
	f.deps.Retriever = retrieverFunc(func(_ context.Context, q []string) (*search.Retrieval, error) {
		return &search.Retrieval{Hits: localHits(), Degradations: []string{search.DegradedEmbedding}}, nil
	})

	res := f.answer(t, "离婚需要什么条件")

	assert.Equal(t, []string{search.DegradedEmbedding}, res.Degradations)
}

func TestAnswer_Rewrite(t *testing.T) {
	t.Run("uses rewritten queries", func(t *testing.T) {
		f := newFixture(pass())
		f.deps.Rewriter = fakeRewriter{primary: "离婚 法定条件", alts: []string{"感情破裂 离婚", ""}}

		res := f.answer(t, "离婚需要什么条件")

		assert.Equal(t, []string{"离婚 法定条件", "感情破裂 离婚"}, res.RewrittenQueries)
		assert.Equal(t, [][]string{{"离婚 法定条件", "感情破裂 离婚"}}, f.retriever.queries)
		// The judge and generator still answer the user's question
		assert.Equal(t, "答复：离婚需要什么条件", res.FinalAnswer)
	})

	t.Run("failure keeps the original query", func(t *testing.T) {
		f := newFixture(pass())
		f.deps.Rewriter = fakeRewriter{err: lrerrors.New(lrerrors.ErrCodeRewriteUnavailable, "down", nil)}

		res := f.answer(t, "离婚需要什么条件")

		assert.Equal(t, []string{"离婚需要什么条件"}, res.RewrittenQueries)
		assert.Contains(t, res.Degradations, DegradedRewrite)
	})

	t.Run("invalid rewrites fall back to the original", func(t *testing.T) {
		f := newFixture(pass())
		f.deps.Rewriter = fakeRewriter{primary: "  "}

		res := f.answer(t, "离婚需要什么条件")

		assert.Equal(t, []string{"离婚需要什么条件"}, res.RewrittenQueries)
	})
}

// =============================================================================
// Contract
// =============================================================================

func TestAnswer_InvalidQuery(t *testing.T) {
	f := newFixture(pass())
	o, err := New(f.deps)
	require.NoError(t, err)

	for _, q := range []string{"", "   "} {
		res, err := o.Answer(context.Background(), q)
		assert.Nil(t, res)
		assert.Equal(t, lrerrors.ErrCodeInvalidQuery, lrerrors.GetCode(err))
	}
	assert.Empty(t, f.retriever.queries)
	assert.Empty(t, f.recorder.results)
}

func TestAnswer_Idempotent(t *testing.T) {
	f := newFixture(fail28())

	a := f.answer(t, "盗窃罪如何量刑")
	b := f.answer(t, "盗窃罪如何量刑")

	assert.Equal(t, a.FinalAnswer, b.FinalAnswer)
	assert.Equal(t, a.Trace, b.Trace)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestAnswer_RecordsRuns(t *testing.T) {
	f := newFixture(pass())

	res := f.answer(t, "离婚需要什么条件")

	require.Len(t, f.recorder.results, 1)
	assert.Same(t, res, f.recorder.results[0])
}

func TestAnswer_Concurrent(t *testing.T) {
	f := newFixture(pass())
	f.recorder = nil
	f.deps.Recorder = nil
	o, err := New(f.deps)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Answer(context.Background(), "离婚需要什么条件")
			assert.NoError(t, err)
			assert.NotEmpty(t, res.FinalAnswer)
		}()
	}
	wg.Wait()
}

func TestNew_RequiresCollaborators(t *testing.T) {
	f := newFixture(pass())

	for name, mutate := range map[string]func(*Dependencies){
		"validator": func(d *Dependencies) { d.Validator = nil },
		"retriever": func(d *Dependencies) { d.Retriever = nil },
		"evaluator": func(d *Dependencies) { d.Evaluator = nil },
		"generator": func(d *Dependencies) { d.Generator = nil },
	} {
		t.Run(name, func(t *testing.T) {
			deps := f.deps
			mutate(&deps)
			_, err := New(deps)
			assert.ErrorContains(t, err, name)
		})
	}
}

type retrieverFunc func(ctx context.Context, queries []string) (*search.Retrieval, error)

func (f retrieverFunc) RetrieveAll(ctx context.Context, queries []string) (*search.Retrieval, error) {
	return f(ctx, queries)
}

type judgeText string

func (j judgeText) Judge(context.Context, string, []string) (string, error) { return string(j), nil }
