package cleaner

import (
	"regexp"
	"strings"
)

var (
	mediaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://[^\s]+`),
		regexp.MustCompile(`(?i)urn:li:[^\s]+`),
		regexp.MustCompile(`(?i)"type":\s*"mediaComponent"[^}]*}`),
		regexp.MustCompile(`(?i)"thumbnail":\s*"[^"]*"`),
	}
	whitespace = regexp.MustCompile(`\s+`)
)

// CleanText strips links, URNs and media fragments from s and collapses
// whitespace.
func CleanText(s string) string {
	for _, p := range mediaPatterns {
		s = p.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// cleanValue applies CleanText to strings and returns anything else as-is.
func cleanValue(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return CleanText(s)
	}
	return v
}

// RemoveFields deletes every key named in fields from v, at any depth.
func RemoveFields(v interface{}, fields map[string]struct{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if _, drop := fields[k]; drop {
				continue
			}
			out[k] = RemoveFields(val, fields)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = RemoveFields(val, fields)
		}
		return out
	default:
		return v
	}
}
