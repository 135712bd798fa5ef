// Package cmd provides the CLI commands for lawrag.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/logging"
	"github.com/Aman-CERP/lawrag/pkg/version"
)

var (
	debugMode      bool
	configDir      string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the lawrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lawrag",
		Short: "Quality-gated retrieval QA over Chinese statutes",
		Long: `lawrag answers legal questions from a line-delimited statute corpus.

Queries are rewritten, retrieved with hybrid keyword and semantic search,
graded by a quality gate, and supplemented with web results when the local
evidence is weak.

Build the index once with 'lawrag index', then use 'lawrag ask' or
'lawrag serve' for MCP clients.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("lawrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&configDir, "dir", "C", "", "Directory holding .lawrag.yaml (default: current directory)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog to the rotating log file. Nothing is written to
// stderr so that MCP stdio and piped JSON stay clean.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if lvl := os.Getenv("LAWRAG_LOG_LEVEL"); lvl != "" {
		cfg.Level = lvl
	}
	if debugMode {
		cfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging_started", slog.String("log_file", cfg.FilePath), slog.String("version", version.Version))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints errors in the CLI format.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), lrerrors.FormatForCLI(err))
		// PersistentPostRunE does not run after a failed command.
		_ = stopLogging(root, nil)
	}
	return err
}
