// Package loader reads a project from disk: SQL model files with optional
// YAML frontmatter, CSV seeds, and schema files declaring column tests.
package loader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/strata/pkg/core"
	"gopkg.in/yaml.v3"
)

// FrontmatterConfig represents parsed YAML frontmatter.
// Unknown fields cause parse errors (use Meta for extensions).
type FrontmatterConfig struct {
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description"`
	Materialized string         `yaml:"materialized"` // table, view
	Schema       string         `yaml:"schema"`
	Tags         []string       `yaml:"tags"`
	Tests        []TestConfig   `yaml:"tests"`
	Meta         map[string]any `yaml:"meta"` // Extension point for custom fields
}

// TestConfig represents a test configuration in frontmatter.
type TestConfig struct {
	Unique         []string              `yaml:"unique,omitempty"`
	NotNull        []string              `yaml:"not_null,omitempty"`
	AcceptedValues *AcceptedValuesConfig `yaml:"accepted_values,omitempty"`
	Relationships  *RelationshipsConfig  `yaml:"relationships,omitempty"`
}

// AcceptedValuesConfig represents accepted values test configuration.
type AcceptedValuesConfig struct {
	Column   string   `yaml:"column"`
	Values   []string `yaml:"values"`
	Severity string   `yaml:"severity"`
}

// RelationshipsConfig represents a referential integrity test configuration.
type RelationshipsConfig struct {
	Column   string `yaml:"column"`
	To       string `yaml:"to"`
	Field    string `yaml:"field"`
	Severity string `yaml:"severity"`
}

// FrontmatterResult holds the result of frontmatter extraction.
type FrontmatterResult struct {
	Config  *FrontmatterConfig
	SQL     string // SQL content after frontmatter
	HasYAML bool   // Whether frontmatter was found
}

// frontmatterPattern matches /*--- ... ---*/ blocks
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

var knownFrontmatterFields = map[string]bool{
	"name":         true,
	"description":  true,
	"materialized": true,
	"schema":       true,
	"tags":         true,
	"tests":        true,
	"meta":         true,
}

// ExtractFrontmatter extracts YAML frontmatter from SQL content.
// Returns the parsed config, remaining SQL, and any error.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{
		Config:  &FrontmatterConfig{},
		SQL:     strings.TrimSpace(content),
		HasYAML: false,
	}

	matches := frontmatterPattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		return result, nil
	}

	result.HasYAML = true
	result.SQL = strings.TrimSpace(frontmatterPattern.ReplaceAllString(content, ""))

	config, err := parseFrontmatterYAML(matches[1])
	if err != nil {
		return nil, err
	}

	result.Config = config
	return result, nil
}

// parseFrontmatterYAML parses YAML content with strict field validation.
func parseFrontmatterYAML(yamlContent string) (*FrontmatterConfig, error) {
	var rawMap map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &rawMap); err != nil {
		return nil, &FrontmatterParseError{
			Message: fmt.Sprintf("invalid YAML: %v", err),
		}
	}

	for field := range rawMap {
		if !knownFrontmatterFields[field] {
			return nil, &UnknownFieldError{Field: field}
		}
	}

	var config FrontmatterConfig
	if err := yaml.Unmarshal([]byte(yamlContent), &config); err != nil {
		return nil, &FrontmatterParseError{
			Message: fmt.Sprintf("failed to parse frontmatter: %v", err),
		}
	}

	m, err := core.ParseMaterialization(config.Materialized)
	if err != nil {
		return nil, &FrontmatterParseError{Message: err.Error()}
	}
	config.Materialized = string(m)

	return &config, nil
}

// Assertions expands the frontmatter tests into declarations for model.
func (c *FrontmatterConfig) Assertions(model, source string) []AssertionDecl {
	var decls []AssertionDecl
	for _, t := range c.Tests {
		for _, col := range t.Unique {
			decls = append(decls, AssertionDecl{Model: model, Column: col, Kind: string(core.AssertUnique), Source: source})
		}
		for _, col := range t.NotNull {
			decls = append(decls, AssertionDecl{Model: model, Column: col, Kind: string(core.AssertNotNull), Source: source})
		}
		if av := t.AcceptedValues; av != nil {
			decls = append(decls, AssertionDecl{
				Model:    model,
				Column:   av.Column,
				Kind:     string(core.AssertAcceptedValues),
				Values:   av.Values,
				Severity: av.Severity,
				Source:   source,
			})
		}
		if rel := t.Relationships; rel != nil {
			decls = append(decls, AssertionDecl{
				Model:    model,
				Column:   rel.Column,
				Kind:     string(core.AssertRelationships),
				To:       rel.To,
				Field:    rel.Field,
				Severity: rel.Severity,
				Source:   source,
			})
		}
	}
	return decls
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an error for unknown frontmatter fields.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter, use \"meta\" field for custom fields", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
