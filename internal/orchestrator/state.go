package orchestrator

import (
	"time"

	"github.com/Aman-CERP/lawrag/internal/quality"
	"github.com/Aman-CERP/lawrag/internal/search"
	"github.com/Aman-CERP/lawrag/internal/websearch"
)

// State is a workflow step.
type State string

// Workflow states. Every run starts at StateRewrite and ends at StateDone;
// the fallback states are visited at most once and nothing returns to
// StateEvaluate.
const (
	StateRewrite      State = "REWRITE"
	StateRetrieve     State = "RETRIEVE"
	StateEvaluate     State = "EVALUATE"
	StateDirectAnswer State = "DIRECT_ANSWER"
	StateWebFallback  State = "WEB_FALLBACK"
	StateMerge        State = "MERGE"
	StateReEvaluate   State = "RE_EVALUATE"
	StateFinalize     State = "FINALIZE"
	StateDone         State = "DONE"
)

// Degradation labels added by the workflow itself. Retrieval adds its own.
const (
	DegradedRewrite    = "rewrite_unavailable"
	DegradedRetrieval  = "retrieval_failed"
	DegradedWebSearch  = "web_search_unavailable"
	DegradedGeneration = "generation_failed"
)

// WorkflowState is the per-query record threaded through every step. It
// is created by Answer and never shared between queries.
type WorkflowState struct {
	OriginalQuery    string
	RewrittenQueries []string
	LocalHits        []search.Hit
	PrimaryQuality   quality.Verdict

	// Set on the fallback branch only. WebHits is non-nil once the web
	// step has run, even when it returned nothing.
	WebHits          []websearch.Result
	MergedHits       []Evidence
	SecondaryQuality *quality.Verdict

	FinalAnswer      string
	Insufficient     bool
	GenerationFailed bool

	Degradations []string
	Trace        []State
}

// UsedFallback reports whether the web fallback branch ran.
func (s *WorkflowState) UsedFallback() bool { return s.WebHits != nil }

func (s *WorkflowState) degrade(labels ...string) {
	for _, l := range labels {
		dup := false
		for _, d := range s.Degradations {
			if d == l {
				dup = true
				break
			}
		}
		if !dup {
			s.Degradations = append(s.Degradations, l)
		}
	}
}

// Result is what Answer returns to its caller.
type Result struct {
	RunID            string           `json:"run_id"`
	Query            string           `json:"query"`
	FinalAnswer      string           `json:"final_answer"`
	PrimaryQuality   quality.Verdict  `json:"primary_quality"`
	SecondaryQuality *quality.Verdict `json:"secondary_quality,omitempty"`
	UsedFallback     bool             `json:"used_fallback"`

	Insufficient     bool          `json:"insufficient"`
	GenerationFailed bool          `json:"generation_failed"`
	RewrittenQueries []string      `json:"rewritten_queries"`
	Evidence         []Evidence    `json:"evidence"`
	WebResults       int           `json:"web_results"`
	Degradations     []string      `json:"degradations,omitempty"`
	Trace            []State       `json:"trace"`
	Duration         time.Duration `json:"duration_ns"`
}

// Path returns "fallback" or "direct".
func (r *Result) Path() string {
	if r.UsedFallback {
		return "fallback"
	}
	return "direct"
}

// Outcome returns "apology", "insufficient" or "answered".
func (r *Result) Outcome() string {
	switch {
	case r.GenerationFailed:
		return "apology"
	case r.Insufficient:
		return "insufficient"
	default:
		return "answered"
	}
}
