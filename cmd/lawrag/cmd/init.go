package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lawrag/configs"
	"github.com/Aman-CERP/lawrag/internal/config"
	"github.com/Aman-CERP/lawrag/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a .lawrag.yaml template",
		Long: `Write a commented .lawrag.yaml into the project directory (--dir or the
current directory). An existing file is preserved unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .lawrag.yaml")
	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	dir := configDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	path := filepath.Join(dir, config.ProjectFileName)

	if _, err := os.Stat(path); err == nil && !force {
		out.Status("ℹ️ ", "Existing "+config.ProjectFileName+" preserved")
		out.Status("💡", "Use --force to overwrite")
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.ProjectFileName, err)
	}

	out.Successf("Created %s", path)
	out.Status("💡", "Place the statute file at corpus.path, then run 'lawrag index'")
	return nil
}
