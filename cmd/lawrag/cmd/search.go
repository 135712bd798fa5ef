package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lawrag/internal/output"
	"github.com/Aman-CERP/lawrag/internal/search"
)

type searchOptions struct {
	format  string
	explain bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search statute provisions",
		Long: `Search the indexed statutes with hybrid keyword and semantic retrieval.

The query is classified as exact, semantic or hybrid, which sets the fusion
weights. Output is text on a terminal and JSON when piped.

Examples:
  lawrag search "《刑法》第二百六十四条"
  lawrag search 离婚需要什么条件 --explain
  lawrag search 盗窃罪 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatAuto, "Output format: auto, text, json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show fusion weights and per-path ranks")
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	format, err := output.ResolveFormat(opts.format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	r, err := a.retriever.Retrieve(ctx, query)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.String("query_type", string(r.Profile.Type)), slog.Int("results", len(r.Hits)))

	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(r)
	}
	writeRetrieval(out, r, opts.explain)
	return nil
}

func writeRetrieval(out *output.Writer, r *search.Retrieval, explain bool) {
	if len(r.Hits) == 0 {
		out.Statusf("🔍", "No provisions found for: %s", r.Query)
		return
	}

	out.Statusf("🔍", "%d provisions for %q (%s)", len(r.Hits), r.Query, r.Profile.Type)
	if explain {
		out.Statusf("", "weights: vector %.1f, keyword %.1f", r.Profile.VectorWeight, r.Profile.KeywordWeight)
	}
	for _, d := range r.Degradations {
		out.Warningf("degraded: %s", d)
	}

	for i, h := range r.Hits {
		out.Newline()
		ref := fmt.Sprintf("#%d", h.DocID)
		if h.Document != nil {
			if s := strings.TrimSpace(h.Document.Law() + " " + h.Document.Article()); s != "" {
				ref = s
			}
		}
		out.Text(fmt.Sprintf("%d. %s  (score: %.3f)", i+1, ref, h.Score))
		if explain {
			out.Statusf("", "vector rank %s, keyword rank %s, fused %.5f, reranked %t",
				rankString(h.Ranks.Vector), rankString(h.Ranks.Keyword), fusedScore(h), h.Reranked)
		}
		if h.Document != nil {
			out.Text("   " + h.Document.Text)
		}
	}
}

func rankString(r int) string {
	if r == 0 {
		return "-"
	}
	return fmt.Sprint(r)
}

func fusedScore(h search.Hit) float64 {
	if h.Reranked {
		return h.FusedScore
	}
	return h.Score
}
