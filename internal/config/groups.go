package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/strata/pkg/core"
)

// GroupSettings are the defaults a models group applies to its models.
type GroupSettings struct {
	Materialized core.Materialization
	Schema       string
	Tags         []string
}

// GroupTree mirrors the directory layout of the models dir. The root holds
// the project-wide defaults.
//
//	models:
//	  +materialized: view
//	  core:
//	    +materialized: table
//	    +tags: [nightly]
//
// Keys starting with "+" are settings; every other key names a
// subdirectory and nests.
type GroupTree struct {
	Settings GroupSettings
	Children map[string]*GroupTree
}

type rawSettings struct {
	Materialized string   `mapstructure:"+materialized"`
	Schema       string   `mapstructure:"+schema"`
	Tags         []string `mapstructure:"+tags"`
}

// ParseGroupTree builds a GroupTree from the raw `models:` mapping.
// A nil mapping yields an empty tree.
func ParseGroupTree(raw map[string]any) (*GroupTree, error) {
	tree, problems := parseGroup(raw, "models")
	if len(problems) > 0 {
		return nil, &core.ConfigurationError{Kind: core.ErrInvalidConfig, Problems: problems}
	}
	return tree, nil
}

func parseGroup(raw map[string]any, path string) (*GroupTree, []core.Problem) {
	tree := &GroupTree{Children: map[string]*GroupTree{}}
	var problems []core.Problem

	settings := map[string]any{}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		if strings.HasPrefix(key, "+") {
			settings[key] = value
			continue
		}

		child, ok := value.(map[string]any)
		if !ok {
			if value != nil {
				problems = append(problems, core.Problem{
					Source: path,
					Detail: fmt.Sprintf("group %q must be a mapping, got %T", key, value),
				})
			}
			child = nil
		}
		sub, subProblems := parseGroup(child, path+"."+key)
		problems = append(problems, subProblems...)
		tree.Children[key] = sub
	}

	var rs rawSettings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rs,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err == nil {
		err = decoder.Decode(settings)
	}
	if err != nil {
		problems = append(problems, core.Problem{Source: path, Detail: err.Error()})
		return tree, problems
	}

	m, err := core.ParseMaterialization(rs.Materialized)
	if err != nil {
		problems = append(problems, core.Problem{Source: path, Detail: err.Error()})
	}
	tree.Settings = GroupSettings{Materialized: m, Schema: rs.Schema, Tags: rs.Tags}
	return tree, problems
}

// Resolve walks the group path from the root and returns the effective
// settings: the deepest group that sets materialized or schema wins, and
// tags accumulate along the path.
func (t *GroupTree) Resolve(group []string) GroupSettings {
	var out GroupSettings
	if t == nil {
		return out
	}

	node := t
	for i := 0; node != nil; i++ {
		if node.Settings.Materialized != "" {
			out.Materialized = node.Settings.Materialized
		}
		if node.Settings.Schema != "" {
			out.Schema = node.Settings.Schema
		}
		for _, tag := range node.Settings.Tags {
			if !slices.Contains(out.Tags, tag) {
				out.Tags = append(out.Tags, tag)
			}
		}

		if i >= len(group) {
			break
		}
		node = node.Children[group[i]]
	}
	return out
}
