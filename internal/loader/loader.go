package loader

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/strata/pkg/core"
)

// Result is everything read from a project's directories.
type Result struct {
	// Models are in lexical order of their path relative to the models dir
	Models     []*core.Model
	Seeds      []*core.Seed
	Assertions []AssertionDecl
}

// Loader reads models, seeds and schema files.
type Loader struct {
	ModelsDir string
	SeedsDir  string
	Logger    *slog.Logger
}

// New creates a loader. A nil logger discards output.
func New(modelsDir, seedsDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{ModelsDir: modelsDir, SeedsDir: seedsDir, Logger: logger}
}

// Load scans the project. Every unreadable or malformed file is reported in
// a single ConfigurationError.
func (l *Loader) Load() (*Result, error) {
	result := &Result{}
	var problems []core.Problem

	var schemaFiles []string
	err := walk(l.ModelsDir, func(path string) {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".sql":
			model, decls, err := l.ParseModelFile(path)
			if err != nil {
				problems = append(problems, core.Problem{Source: path, Detail: err.Error()})
				return
			}
			result.Models = append(result.Models, model)
			result.Assertions = append(result.Assertions, decls...)
		case ".yml", ".yaml":
			schemaFiles = append(schemaFiles, path)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan models directory: %w", err)
	}

	descriptions := map[string]string{}
	for _, path := range schemaFiles {
		schema, errs := ParseSchemaFile(path)
		for _, e := range errs {
			problems = append(problems, core.Problem{Source: path, Detail: e.Error()})
		}
		if schema == nil {
			continue
		}
		for name, desc := range schema.Descriptions {
			descriptions[name] = desc
		}
		result.Assertions = append(result.Assertions, schema.Assertions...)
	}
	for _, m := range result.Models {
		if m.Description == "" {
			m.Description = descriptions[m.Name]
		}
	}

	if l.SeedsDir != "" {
		if _, statErr := os.Stat(l.SeedsDir); statErr == nil {
			err := walk(l.SeedsDir, func(path string) {
				if strings.EqualFold(filepath.Ext(path), ".csv") {
					name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
					result.Seeds = append(result.Seeds, &core.Seed{Name: name, FilePath: path})
				}
			})
			if err != nil {
				return nil, fmt.Errorf("failed to scan seeds directory: %w", err)
			}
		}
	}

	if len(problems) > 0 {
		return nil, &core.ConfigurationError{Kind: core.ErrInvalidModel, Problems: problems}
	}

	l.Logger.Debug("project loaded",
		slog.Int("models", len(result.Models)),
		slog.Int("seeds", len(result.Seeds)),
		slog.Int("tests", len(result.Assertions)))
	return result, nil
}

// walk visits regular, non-hidden files under dir in lexical order.
func walk(dir string, visit func(path string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			visit(path)
		}
		return nil
	})
}

// ParseModelFile reads one model file.
func (l *Loader) ParseModelFile(path string) (*core.Model, []AssertionDecl, error) {
	content, err := os.ReadFile(path) //nolint:gosec // model files come from the models directory
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	return l.ParseModel(path, string(content))
}

// ParseModel builds a model from file content. Materialization is left as
// declared (possibly empty); the registry layers group and project defaults.
func (l *Loader) ParseModel(path, content string) (*core.Model, []AssertionDecl, error) {
	fm, err := ExtractFrontmatter(content)
	if err != nil {
		return nil, nil, err
	}

	group := l.group(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	cfg := fm.Config
	name := cfg.Name
	if name == "" {
		name = stem
	}
	if fm.SQL == "" {
		return nil, nil, fmt.Errorf("model %s has an empty body", name)
	}

	model := &core.Model{
		Name:         name,
		Path:         strings.Join(append(append([]string{}, group...), stem), "."),
		FilePath:     path,
		Group:        group,
		Materialized: core.Materialization(cfg.Materialized),
		Schema:       cfg.Schema,
		Description:  cfg.Description,
		Tags:         cfg.Tags,
		Meta:         cfg.Meta,
		Refs:         ExtractRefs(fm.SQL),
		SQL:          fm.SQL,
		RawContent:   content,
	}

	return model, cfg.Assertions(name, path), nil
}

// group returns the directory components between the models dir and path.
func (l *Loader) group(path string) []string {
	rel, err := filepath.Rel(l.ModelsDir, filepath.Dir(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}
