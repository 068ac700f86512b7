package storage

import (
	"fmt"
	"strings"
)

// Format replaces every {key} in pattern with fields[key]. Substituted
// values are made safe to use as a single path segment. A key missing from
// fields is an error.
func Format(pattern string, fields map[string]interface{}) (string, error) {
	var b strings.Builder
	rest := pattern

	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated field in pattern %q", pattern)
		}
		end += open

		key := rest[open+1 : end]
		value, ok := fields[key]
		if !ok {
			return "", fmt.Errorf("pattern %q: field %q is not set", pattern, key)
		}
		b.WriteString(rest[:open])
		b.WriteString(Sanitize(fmt.Sprint(value)))
		rest = rest[end+1:]
	}

	return b.String(), nil
}

// Sanitize replaces path separators and control characters with '_'. The
// names "." and ".." are replaced entirely.
func Sanitize(s string) string {
	if s == "." || s == ".." {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, s)
}
