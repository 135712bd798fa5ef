package quality

import (
	"context"
	"log/slog"
	"time"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/resilience"
)

// Judge is the judgment collaborator. It returns free text that Parse reads.
type Judge interface {
	Judge(ctx context.Context, query string, documents []string) (string, error)
}

// GateConfig configures a Gate.
type GateConfig struct {
	// Threshold is the pass ratio of total/40.
	Threshold float64
	// MaxDocuments caps how many documents the judge sees. 0 means no cap.
	MaxDocuments int
	Timeout      time.Duration
}

// Gate turns a judge response into a Verdict.
type Gate struct {
	judge  Judge
	guard  *resilience.Guard
	config GateConfig
}

// NewGate creates a gate. guard may be nil. An unset threshold uses
// DefaultThreshold; loaded configuration never carries a zero threshold.
func NewGate(judge Judge, guard *resilience.Guard, cfg GateConfig) *Gate {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Gate{judge: judge, guard: guard, config: cfg}
}

// Threshold returns the pass ratio.
func (g *Gate) Threshold() float64 { return g.config.Threshold }

// Evaluate judges documents against query. It never returns an error: an
// unreachable judge, a timeout or an unparseable response all yield a
// malformed verdict, which fails.
func (g *Gate) Evaluate(ctx context.Context, query string, documents []string) Verdict {
	if g.config.MaxDocuments > 0 && len(documents) > g.config.MaxDocuments {
		documents = documents[:g.config.MaxDocuments]
	}

	start := time.Now()
	text, err := resilience.Call(ctx, g.guard, resilience.Judge, g.config.Timeout,
		func(ctx context.Context) (string, error) {
			return g.judge.Judge(ctx, query, documents)
		})

	var v Verdict
	switch {
	case err != nil:
		slog.Warn("judge_unavailable",
			slog.String("reason", resilience.Reason(err)),
			slog.String("error", err.Error()))
		v = Malformed(lrerrors.ErrCodeJudgeUnavailable, "judge unavailable: "+resilience.Reason(err))
	default:
		score, perr := Parse(text, g.config.Threshold)
		if perr != nil {
			slog.Warn("judge_response_malformed", lrerrors.LogAttrs(perr)...)
			v = Malformed(lrerrors.ErrCodeMalformedEvaluation, perr.Error())
		} else {
			v = Parsed(score)
		}
	}

	slog.Info("quality_gate_evaluated",
		slog.String("kind", string(v.Kind)),
		slog.Float64("total", v.Total()),
		slog.Float64("threshold", g.config.Threshold),
		slog.Bool("passed", v.Passed()),
		slog.Int("documents", len(documents)),
		slog.Duration("duration", time.Since(start)))

	return v
}
