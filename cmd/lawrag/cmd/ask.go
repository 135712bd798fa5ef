package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lawrag/internal/orchestrator"
	"github.com/Aman-CERP/lawrag/internal/output"
)

type askOptions struct {
	format   string
	evidence bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a legal question",
		Long: `Answer a legal question through the full workflow: rewrite, retrieve,
quality gate, optional web fallback, and answer generation.

Examples:
  lawrag ask 离婚需要什么条件
  lawrag ask "盗窃罪如何量刑" --evidence
  lawrag ask 劳动合同解除 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatAuto, "Output format: auto, text, json")
	cmd.Flags().BoolVar(&opts.evidence, "evidence", false, "Print the evidence the answer was drafted from")
	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts askOptions) error {
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
	if err := a.enableAnswering(); err != nil {
		return err
	}

	res, err := a.orchestrator.Answer(ctx, question)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(res)
	}
	writeAnswer(out, res, opts.evidence)
	return nil
}

func writeAnswer(out *output.Writer, res *orchestrator.Result, evidence bool) {
	out.Text(res.FinalAnswer)
	out.Newline()

	summary := fmt.Sprintf("path: %s | quality: %.0f/40 (%s)", res.Path(), res.PrimaryQuality.Total(), res.PrimaryQuality.Kind)
	if res.SecondaryQuality != nil {
		summary += fmt.Sprintf(" | re-evaluated: %.0f/40", res.SecondaryQuality.Total())
	}
	out.Status("ℹ️ ", summary)
	for _, d := range res.Degradations {
		out.Warningf("degraded: %s", d)
	}

	if !evidence {
		return
	}
	for i, e := range res.Evidence {
		out.Newline()
		if e.Source == orchestrator.SourceWeb {
			out.Text(fmt.Sprintf("[%d] web: %s (%s)", i+1, e.Title, e.URL))
		} else {
			out.Text(fmt.Sprintf("[%d] %s %s", i+1, e.Law, e.Article))
		}
		out.Text("    " + e.Text)
	}
}
