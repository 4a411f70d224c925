package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var profileURLPattern = regexp.MustCompile(`(?i)^https?://(?:www\.)?linkedin\.com/in/[\w\-]+/?(?:\?.*)?$`)

const profileMarker = "linkedin.com/in"

// IsValidProfileURL reports whether s is a LinkedIn profile URL.
func IsValidProfileURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return profileURLPattern.MatchString(s)
}

// CleanProfileURL reduces s to scheme://host/path, dropping query and
// fragment, and ensures a trailing slash.
func CleanProfileURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	clean := u.Scheme + "://" + u.Host + u.Path
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	return clean
}

func isSeparator(r rune) bool {
	switch r {
	case ',', ';', ' ', '\n', '\t', '|':
		return true
	}
	return false
}

// Candidates splits text on the separators people use between several URLs
// in one cell and keeps the ones that look like profile links.
func Candidates(text string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(text, isSeparator) {
		part = strings.TrimSpace(part)
		if part != "" && strings.Contains(strings.ToLower(part), profileMarker) {
			out = append(out, part)
		}
	}
	return out
}

// FirstValidProfileURL returns the first candidate in text that is a valid
// profile URL once cleaned, or "" when there is none.
func FirstValidProfileURL(text string) string {
	for _, candidate := range Candidates(text) {
		if cleaned := CleanProfileURL(candidate); IsValidProfileURL(cleaned) {
			return cleaned
		}
	}
	return ""
}

// FieldURL extracts a profile URL from one field value. List values
// contribute their first element only.
func FieldURL(value interface{}) string {
	if list, ok := value.([]interface{}); ok {
		if len(list) == 0 {
			return ""
		}
		value = list[0]
	}
	s, ok := value.(string)
	if !ok || !strings.Contains(strings.ToLower(s), profileMarker) {
		return ""
	}
	return FirstValidProfileURL(s)
}

// CanonicalProfileURL is the comparison form of a profile URL: cleaned,
// lower-cased and without the www. prefix. Scraped profiles echo their URL
// in whatever form the scraper prefers, so unit ids are matched on this.
func CanonicalProfileURL(s string) string {
	c := strings.ToLower(CleanProfileURL(s))
	return strings.Replace(c, "://www.", "://", 1)
}
