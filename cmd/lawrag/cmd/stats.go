package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lawrag/internal/output"
	"github.com/Aman-CERP/lawrag/internal/store"
	"github.com/Aman-CERP/lawrag/internal/telemetry"
)

type statsOptions struct {
	format string
	since  time.Duration
	recent int
}

// StatsOutput is the JSON output of the stats command.
type StatsOutput struct {
	Index  string           `json:"index,omitempty"`
	Stats  *telemetry.Stats `json:"stats"`
	Recent []telemetry.Run  `json:"recent,omitempty"`
}

func newStatsCmd() *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show answer statistics from the local run log",
		Long: `Display statistics about answered questions: how often the web
fallback ran, how many answers were insufficient, malformed judgments,
latency distribution and degradations.

Runs are only recorded when telemetry.enabled is true.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatAuto, "Output format: auto, text, json")
	cmd.Flags().DurationVar(&opts.since, "since", 7*24*time.Hour, "Window to aggregate over")
	cmd.Flags().IntVar(&opts.recent, "recent", 0, "Also list the N most recent runs")
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, opts statsOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format, err := output.ResolveFormat(opts.format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.TelemetryPath()
	if _, statErr := os.Stat(path); statErr != nil {
		return fmt.Errorf("no run log found at %s\nEnable telemetry and run 'lawrag ask' first", path)
	}
	runs, err := telemetry.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer func() { _ = runs.Close() }()

	stats, err := runs.Stats(ctx, time.Now().Add(-opts.since))
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	result := StatsOutput{Stats: stats, Index: describeIndex(ctx, cfg.DocumentsPath())}
	if opts.recent > 0 {
		if result.Recent, err = runs.Recent(ctx, opts.recent); err != nil {
			return fmt.Errorf("failed to read recent runs: %w", err)
		}
	}

	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(result)
	}
	writeStats(out, result)
	return nil
}

// describeIndex summarizes the built index, or returns "" when there is none.
func describeIndex(ctx context.Context, path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	docs, err := store.NewSQLiteDocumentStore(path)
	if err != nil {
		return ""
	}
	defer func() { _ = docs.Close() }()
	return indexSummary(ctx, docs)
}

func writeStats(out *output.Writer, result StatsOutput) {
	s := result.Stats
	out.Text("Answer Statistics")
	out.Text("=================")
	if result.Index != "" {
		out.Text(fmt.Sprintf("Index:          %s", result.Index))
	}
	out.Text(fmt.Sprintf("Since:          %s", s.Since.Format(time.RFC3339)))
	out.Text(fmt.Sprintf("Total runs:     %d", s.TotalRuns))
	if s.TotalRuns == 0 {
		return
	}
	out.Text(fmt.Sprintf("Web fallback:   %d (%.1f%%)", s.FallbackRuns, 100*s.FallbackRate()))
	out.Text(fmt.Sprintf("Insufficient:   %d", s.InsufficientRuns))
	out.Text(fmt.Sprintf("Apologies:      %d", s.ApologyRuns))
	out.Text(fmt.Sprintf("Malformed:      %d", s.MalformedJudgments))
	out.Text(fmt.Sprintf("Avg quality:    %.1f/40", s.AvgPrimaryTotal))

	out.Newline()
	out.Text("Latency:")
	for _, b := range telemetry.Buckets {
		out.Text(fmt.Sprintf("  %-5s %d", b, s.Latency[b]))
	}

	if len(s.Degradations) > 0 {
		out.Newline()
		out.Text("Degradations:")
		for label, n := range s.Degradations {
			out.Text(fmt.Sprintf("  %s: %d", label, n))
		}
	}

	if len(result.Recent) > 0 {
		out.Newline()
		out.Text("Recent runs:")
		for _, r := range result.Recent {
			out.Text(fmt.Sprintf("  %s  %-8s %-12s %4.0f/40  %s",
				r.CreatedAt.Format("2006-01-02 15:04"), r.Path, r.Outcome, r.PrimaryTotal, r.Query))
		}
	}
}
