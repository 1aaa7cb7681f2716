package loader

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// AssertionDecl is a column test as declared, before model names are
// checked against the registry.
type AssertionDecl struct {
	Model  string
	Column string
	Kind   string

	Values []string
	// Quote is nil when the declaration leaves quoting to the default
	Quote *bool

	To    string
	Field string

	Severity string
	Where    string

	// Source is the declaring file
	Source string
}

type schemaFile struct {
	Version int           `yaml:"version"`
	Models  []schemaModel `yaml:"models"`
}

type schemaModel struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Columns     []schemaColumn `yaml:"columns"`
}

type schemaColumn struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Tests       []any  `yaml:"tests"`
	DataTests   []any  `yaml:"data_tests"`
}

// testArgs are the arguments a single-key test entry may carry.
type testArgs struct {
	Values   []string `mapstructure:"values"`
	Quote    *bool    `mapstructure:"quote"`
	To       string   `mapstructure:"to"`
	Field    string   `mapstructure:"field"`
	Severity string   `mapstructure:"severity"`
	Where    string   `mapstructure:"where"`
	Config   struct {
		Severity string `mapstructure:"severity"`
		Where    string `mapstructure:"where"`
	} `mapstructure:"config"`
}

// SchemaResult is the content of one schema file.
type SchemaResult struct {
	// Descriptions maps model name to its description, when set
	Descriptions map[string]string
	Assertions   []AssertionDecl
}

// ParseSchemaFile reads a schema file. Problems in individual test entries
// are collected and returned together.
func ParseSchemaFile(path string) (*SchemaResult, []error) {
	content, err := os.ReadFile(path) //nolint:gosec // schema files come from the models directory
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read schema file: %w", err)}
	}
	return ParseSchema(path, content)
}

// ParseSchema parses schema file content. source names the file in messages.
func ParseSchema(source string, content []byte) (*SchemaResult, []error) {
	var doc schemaFile
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, []error{fmt.Errorf("invalid YAML: %w", err)}
	}

	result := &SchemaResult{Descriptions: map[string]string{}}
	var errs []error

	for _, m := range doc.Models {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("model entry without a name"))
			continue
		}
		if m.Description != "" {
			result.Descriptions[m.Name] = m.Description
		}

		for _, col := range m.Columns {
			if col.Name == "" {
				errs = append(errs, fmt.Errorf("model %s: column entry without a name", m.Name))
				continue
			}
			for _, entry := range append(col.Tests, col.DataTests...) {
				decl, err := parseTestEntry(entry)
				if err != nil {
					errs = append(errs, fmt.Errorf("model %s column %s: %w", m.Name, col.Name, err))
					continue
				}
				decl.Model = m.Name
				decl.Column = col.Name
				decl.Source = source
				result.Assertions = append(result.Assertions, decl)
			}
		}
	}

	return result, errs
}

// parseTestEntry decodes either a bare test name or a single-key mapping
// of test name to arguments.
func parseTestEntry(entry any) (AssertionDecl, error) {
	switch v := entry.(type) {
	case string:
		return AssertionDecl{Kind: v}, nil
	case map[string]any:
		if len(v) != 1 {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return AssertionDecl{}, fmt.Errorf("test entry must have exactly one key, got %v", keys)
		}
		for kind, raw := range v {
			var args testArgs
			if raw != nil {
				decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
					Result:           &args,
					WeaklyTypedInput: true,
					ErrorUnused:      true,
				})
				if err != nil {
					return AssertionDecl{}, err
				}
				if err := decoder.Decode(raw); err != nil {
					return AssertionDecl{}, fmt.Errorf("invalid arguments for %s: %w", kind, err)
				}
			}

			decl := AssertionDecl{
				Kind:     kind,
				Values:   args.Values,
				Quote:    args.Quote,
				To:       args.To,
				Field:    args.Field,
				Severity: args.Severity,
				Where:    args.Where,
			}
			if decl.Severity == "" {
				decl.Severity = args.Config.Severity
			}
			if decl.Where == "" {
				decl.Where = args.Config.Where
			}
			return decl, nil
		}
	}
	return AssertionDecl{}, fmt.Errorf("unsupported test entry %v", entry)
}
