package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
)

// SeedOutput is the JSON shape of the seed command.
type SeedOutput struct {
	Tables    []string `json:"tables"`
	SeedsDir  string   `json:"seeds_dir"`
	Database  string   `json:"database"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load seed data from CSV files",
		Long: `Load every CSV file in the seeds directory into a table named after
the file, replacing tables that already exist.

Seeds give metric definitions sample data to query against. With the
default in-memory DuckDB target the tables only live for one command; use
query --seed, or point target.database at a file.

Use --output to override: auto, text, markdown, json`,
		Example: `  # Load all seeds into the configured target
  leapmetrics seed --database warehouse.duckdb

  # Load seeds from a specific directory
  leapmetrics seed --seeds-dir ./data/seeds`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd)
		},
	}

	return cmd
}

func runSeed(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	tables, err := cmdCtx.Engine.LoadSeeds(cmd.Context(), "")
	if err != nil {
		return err
	}
	if tables == nil {
		tables = []string{}
	}

	database := cfg.Target.Database
	if database == "" {
		database = ":memory:"
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(SeedOutput{Tables: tables, SeedsDir: cfg.SeedsDir, Database: database})
	case output.ModeMarkdown, output.ModeCSV:
		r.Println(output.FormatHeader(1, "Seeds Loaded"))
		r.Println("")
		if len(tables) == 0 {
			r.Println("No seed files found in " + cfg.SeedsDir)
			return nil
		}
		for _, table := range tables {
			r.Printf("- %s (%s)\n", table, table+".csv")
		}
		r.Println("")
		r.Printf("**Total Seeds:** %d\n", len(tables))
	default:
		r.Header(1, "Seeds")
		if len(tables) == 0 {
			r.Muted("No seed files found in " + cfg.SeedsDir)
			return nil
		}
		styles := r.Styles()
		for _, table := range tables {
			r.Printf("%s %s %s\n", styles.Success.Render("✓"), table, styles.Muted.Render(filepath.Join(cfg.SeedsDir, table+".csv")))
		}
		r.Println("")
		r.Success(fmt.Sprintf("Loaded %d seeds into %s", len(tables), database))
	}
	return nil
}
