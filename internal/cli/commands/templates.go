package commands

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// dotfiles are stored without the leading dot so tooling ignores them inside
// the template tree.
var dotfiles = map[string]string{
	"gitignore": ".gitignore",
}

// projectTemplate returns the embedded template tree with the given name.
func projectTemplate(name string) (fs.FS, error) {
	sub, err := fs.Sub(templateFS, path.Join("templates", name))
	if err != nil {
		return nil, err
	}
	if _, err := fs.Stat(sub, "."); err != nil {
		return nil, fmt.Errorf("unknown project template %q", name)
	}
	return sub, nil
}

// targetName maps a template-relative slash path to its name on disk.
func targetName(rel string) string {
	dir, base := path.Split(rel)
	if renamed, ok := dotfiles[base]; ok {
		base = renamed
	}
	return path.Join(dir, base)
}

// copyTemplate writes a template into targetDir. Existing files are kept
// unless force is set.
func copyTemplate(name, targetDir string, force bool) error {
	tmpl, err := projectTemplate(name)
	if err != nil {
		return err
	}

	return fs.WalkDir(tmpl, ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil || rel == "." {
			return err
		}

		dest := filepath.Join(targetDir, filepath.FromSlash(targetName(rel)))
		if d.IsDir() {
			return os.MkdirAll(dest, 0o750)
		}

		if !force {
			if _, err := os.Stat(dest); err == nil {
				return nil
			}
		}

		content, err := fs.ReadFile(tmpl, rel)
		if err != nil {
			return err
		}
		return os.WriteFile(dest, content, 0o600)
	})
}

// listTemplateFiles returns the files a template creates, as OS paths
// relative to the project directory.
func listTemplateFiles(name string) ([]string, error) {
	tmpl, err := projectTemplate(name)
	if err != nil {
		return nil, err
	}

	var files []string
	err = fs.WalkDir(tmpl, ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, filepath.FromSlash(targetName(rel)))
		}
		return nil
	})
	return files, err
}

// groupTemplateFiles groups files by top-level directory for display.
// Files at the project root are grouped as "config".
func groupTemplateFiles(files []string) map[string][]string {
	groups := map[string][]string{
		"config":  {},
		"metrics": {},
		"seeds":   {},
	}

	for _, f := range files {
		top, _, nested := strings.Cut(filepath.ToSlash(f), "/")
		if !nested {
			top = "config"
		}
		groups[top] = append(groups[top], f)
	}

	return groups
}
