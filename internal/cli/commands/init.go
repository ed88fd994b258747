package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/config"
	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapmetrics project",
		Long: `Initialize a new leapmetrics project with a configuration file and a
working example.

This creates:
  - leapmetrics.yaml configuration file
  - metrics/orders.yaml with a semantic model and one metric of each type
  - seeds/orders.csv with sample orders
  - .gitignore for the history and DuckDB files`,
		Example: `  # Initialize in current directory
  leapmetrics init

  # Initialize in a new directory
  leapmetrics init my-metrics

  # Force overwrite existing files
  leapmetrics init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			mode := output.ModeAuto
			if cfg, ok := config.GetConfig(cmd.Context()); ok {
				if m, err := output.ParseMode(cfg.OutputFormat); err == nil {
					mode = m
				}
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileNames[0])
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileNames[0])
	}

	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, err := listTemplateFiles("minimal")
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"directory": dir, "files": files})
	}

	groups := groupTemplateFiles(files)
	styles := r.Styles()
	for _, group := range []string{"config", "metrics", "seeds"} {
		for _, f := range groups[group] {
			r.Printf("%s %s\n", styles.Success.Render("✓"), f)
		}
	}

	r.Println("")
	r.Success("leapmetrics project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  leapmetrics validate                      Check the definitions")
	r.Println("  leapmetrics list                          View metrics")
	r.Println("  leapmetrics seed                          Load CSV data into DuckDB")
	r.Println("  leapmetrics query revenue -d country      Query a metric")

	return nil
}
