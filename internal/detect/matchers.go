package detect

import "regexp"

// HeadingMatcher recognizes one family of chapter heading lines. Matchers
// run in order against trimmed paragraph-initial lines; adding a locale
// means appending a matcher, not touching detector control flow.
type HeadingMatcher struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultMatchers returns the built-in heading matchers: English and French
// chapter words, then bare numeric and Roman numeral prefixes.
func DefaultMatchers() []HeadingMatcher {
	return []HeadingMatcher{
		{Name: "chapter", Pattern: regexp.MustCompile(`(?i)^chapter\s+\d+`)},
		{Name: "chapitre", Pattern: regexp.MustCompile(`(?i)^chapitre\s+\d+`)},
		{Name: "part", Pattern: regexp.MustCompile(`(?i)^part\s+\d+`)},
		{Name: "section", Pattern: regexp.MustCompile(`(?i)^section\s+\d+`)},
		{Name: "arabic-dot", Pattern: regexp.MustCompile(`^\d+\.`)},
		{Name: "arabic-space", Pattern: regexp.MustCompile(`^\d+\s`)},
		{Name: "roman", Pattern: regexp.MustCompile(`(?i)^[IVXLCDM]+\.`)},
	}
}
