package commands

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// scaffoldFile is one file written by init.
type scaffoldFile struct {
	// Path is slash separated and relative to the project directory
	Path    string
	Skipped bool
}

// writeTemplate copies an embedded template into targetDir. Existing files
// are kept unless force is set.
func writeTemplate(name, targetDir string, force bool) ([]scaffoldFile, error) {
	root := path.Join("templates", name)
	if _, err := fs.Stat(templateFS, root); err != nil {
		return nil, fmt.Errorf("unknown template %q", name)
	}

	var files []scaffoldFile
	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if rel == "" {
			return nil
		}
		rel = dotfileName(rel)
		target := filepath.Join(targetDir, filepath.FromSlash(rel))

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}

		if !force {
			if _, err := os.Stat(target); err == nil {
				files = append(files, scaffoldFile{Path: rel, Skipped: true})
				return nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}

		content, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0o600); err != nil {
			return err
		}
		files = append(files, scaffoldFile{Path: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(files, func(i, j int) bool {
		return scaffoldGroup(files[i].Path) < scaffoldGroup(files[j].Path)
	})
	return files, nil
}

// dotfileName restores the leading dot that embedded templates cannot carry.
func dotfileName(rel string) string {
	dir, base := path.Split(rel)
	if base == "gitignore" {
		return dir + ".gitignore"
	}
	return rel
}

// scaffoldGroup orders configuration, then seeds, then models.
func scaffoldGroup(rel string) int {
	switch {
	case strings.HasPrefix(rel, "seeds/"):
		return 1
	case strings.HasPrefix(rel, "models/"):
		return 2
	default:
		return 0
	}
}
