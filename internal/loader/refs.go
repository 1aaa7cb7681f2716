package loader

import (
	"fmt"
	"regexp"
	"strings"
)

// refPattern matches {{ ref('name') }} and {{ ref("name") }}.
var refPattern = regexp.MustCompile(`\{\{\s*ref\s*\(\s*(?:'([^'\s]+)'|"([^"\s]+)")\s*\)\s*\}\}`)

func refName(match []string) string {
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}

// ExtractRefs returns the names referenced in sql, in first-seen order,
// without duplicates.
func ExtractRefs(sql string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, match := range refPattern.FindAllStringSubmatch(sql, -1) {
		name := refName(match)
		if !seen[name] {
			refs = append(refs, name)
			seen[name] = true
		}
	}
	return refs
}

// ParseRefExpr accepts either "ref('name')" or a bare name, as used by the
// `to:` argument of relationships tests.
func ParseRefExpr(expr string) string {
	expr = strings.TrimSpace(expr)
	if m := refPattern.FindStringSubmatch("{{ " + expr + " }}"); m != nil {
		return refName(m)
	}
	return expr
}

// RenderRefs replaces every ref marker with the relation returned by
// resolve. All names resolve cannot map are reported together.
func RenderRefs(sql string, resolve func(name string) (string, bool)) (string, error) {
	var missing []string
	out := refPattern.ReplaceAllStringFunc(sql, func(marker string) string {
		name := refName(refPattern.FindStringSubmatch(marker))
		relation, ok := resolve(name)
		if !ok {
			missing = append(missing, name)
			return marker
		}
		return relation
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("cannot render refs: unknown %s", strings.Join(missing, ", "))
	}
	return out, nil
}
