// Package strings holds list helpers shared by config parsing.
package strings

import (
	"strings"
)

// SplitList splits a comma separated value, drops blanks and keeps the first
// occurrence of each entry.
//
//	SplitList(" active, claimed ,,active") // []string{"active", "claimed"}
func SplitList(raw string) []string {
	return dedupe(strings.Split(raw, ","), strings.TrimSpace)
}

// SplitListLower is SplitList with entries folded to lower case, for
// enumerations such as policy statuses or crop names.
func SplitListLower(raw string) []string {
	return dedupe(strings.Split(raw, ","), func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(values []string, norm func(string) string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
