package commands

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/internal/engine"
)

// watchDebounce coalesces bursts of editor writes into one validation run.
const watchDebounce = 150 * time.Millisecond

// ValidationOutput is the JSON shape of the validate command.
type ValidationOutput struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidationError reports that definitions failed validation. The
// individual problems have already been rendered.
type ValidationError struct {
	Errs []error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(e.Errs))
}

// Unwrap returns the individual problems.
func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check metric definitions",
		Long: `Load every definition in the metrics directory, check references and
dependency cycles, and compile each metric on its own for the target
dialect. No database connection is made.

Every problem found is reported, not just the first. With --watch the
definitions are re-checked whenever a YAML file changes.`,
		Example: `  # Validate definitions
  leapmetrics validate

  # Re-validate on every save
  leapmetrics validate --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}
			if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
				return err
			}

			check := func() error {
				errs := engine.ValidateDir(cmd.Context(), cmdCtx.Cfg.MetricsDir, cmdCtx.Cfg.Target.Type)
				return reportValidation(cmdCtx.Renderer, errs)
			}

			if !watch {
				return check()
			}
			_ = check()
			return watchDefinitions(cmd.Context(), cmdCtx, check)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-validate when definition files change")
	return cmd
}

// reportValidation renders errs and returns an error when any were found.
func reportValidation(r *output.Renderer, errs []error) error {
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(ValidationOutput{Valid: len(errs) == 0, Errors: messages}); err != nil {
			return err
		}
	case output.ModeMarkdown, output.ModeCSV:
		r.Println(output.FormatHeader(1, "Validation"))
		r.Println("")
		if len(errs) == 0 {
			r.Println("All definitions are valid.")
			break
		}
		for _, msg := range messages {
			r.Printf("- %s\n", msg)
		}
	default:
		if len(errs) == 0 {
			r.Success("All definitions are valid")
			break
		}
		for _, msg := range messages {
			r.Error(msg)
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errs: errs}
	}
	return nil
}

// watchDefinitions runs check after YAML files under the metrics dir change
// until ctx is cancelled.
func watchDefinitions(ctx context.Context, cmdCtx *CommandContext, check func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, cmdCtx.Cfg.MetricsDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cmdCtx.Cfg.MetricsDir, err)
	}
	cmdCtx.Renderer.Muted("Watching " + cmdCtx.Cfg.MetricsDir + " for changes (Ctrl+C to stop)")

	// Debounce timer
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	rerun := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// New subdirectories need their own watch.
				_ = watchDirRecursive(watcher, event.Name)
			}
			if !isDefinitionFile(event.Name) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})

		case <-rerun:
			cmdCtx.Logger.Debug("definitions changed, re-validating")
			cmdCtx.Renderer.Println("")
			_ = check()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmdCtx.Logger.Error("watcher error", "error", err)
		}
	}
}

func isDefinitionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
