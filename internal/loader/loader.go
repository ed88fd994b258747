// Package loader reads semantic model and metric definitions from YAML
// files.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// Definitions is everything loaded from a set of files.
type Definitions struct {
	Models  []core.SemanticModel
	Metrics []core.Metric
	// Files lists the files read, in load order.
	Files []string
}

// ErrNoDefinitions is returned when a directory contains no YAML files.
var ErrNoDefinitions = errors.New("no definition files found")

// LoadDir loads every *.yaml and *.yml file under dir, in sorted path
// order. Errors from all files are collected and returned joined.
func LoadDir(dir string) (*Definitions, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	files, err := definitionFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDefinitions, dir)
	}

	defs := &Definitions{}
	var errs []error
	for _, path := range files {
		content, err := os.ReadFile(path) //nolint:gosec // path comes from walking the definitions dir
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read %s: %w", path, err))
			continue
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		parsed, err := Parse(content, filepath.ToSlash(rel))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs.Models = append(defs.Models, parsed.Models...)
		defs.Metrics = append(defs.Metrics, parsed.Metrics...)
		defs.Files = append(defs.Files, parsed.Files...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return defs, nil
}

func definitionFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Parse decodes one definition file. file is recorded on every model,
// metric and error. An empty document yields no definitions.
func Parse(content []byte, file string) (*Definitions, error) {
	var doc definitionFile
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Definitions{Files: []string{file}}, nil
		}
		return nil, &core.DefinitionError{File: file, Message: "invalid YAML", Err: err}
	}

	defs := &Definitions{Files: []string{file}}
	for _, m := range doc.SemanticModels {
		defs.Models = append(defs.Models, m.toCore(file))
	}

	var errs []error
	for _, m := range doc.Metrics {
		metric, err := m.toCore(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs.Metrics = append(defs.Metrics, metric)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return defs, nil
}
