package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadSeeds loads every CSV file in dir into a table named after the file,
// replacing existing tables. An empty dir means the configured seeds dir.
// It returns the tables loaded.
func (e *Engine) LoadSeeds(ctx context.Context, dir string) ([]string, error) {
	if dir == "" {
		dir = e.seedsDir
	}
	if dir == "" {
		return nil, nil
	}

	e.logger.Debug("loading seeds", "seeds_dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No seeds directory is OK
		}
		return nil, fmt.Errorf("failed to read seeds directory: %w", err)
	}

	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	var tables []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			continue
		}

		table := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		csvPath := filepath.Join(dir, entry.Name())

		e.logger.Debug("loading seed file", "table", table, "path", csvPath)

		if err := e.db.LoadCSV(ctx, e.dialect.QuoteIdentifierIfNeeded(table), csvPath); err != nil {
			return tables, fmt.Errorf("failed to load seed %s: %w", entry.Name(), err)
		}
		tables = append(tables, table)
	}

	e.logger.Info("loaded seeds", "tables", len(tables))
	return tables, nil
}
