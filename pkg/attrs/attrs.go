// Package attrs reads values back out of slog-style key/value argument lists,
// the shape audit helpers receive.
package attrs

import "log/slog"

// ExtractString returns the string stored under key in kv, which is either
// alternating key, value pairs or slog.Attr entries. Missing keys and
// non-string values yield "".
func ExtractString(kv []any, key string) string {
	for i := 0; i < len(kv); i++ {
		switch k := kv[i].(type) {
		case slog.Attr:
			if k.Key == key && k.Value.Kind() == slog.KindString {
				return k.Value.String()
			}
		case string:
			if i+1 >= len(kv) {
				return ""
			}
			if k == key {
				v, _ := kv[i+1].(string)
				return v
			}
			i++
		}
	}
	return ""
}
