// Package textnorm cleans raw extracted text into synthesis-safe text.
//
// Normalize is a pure function and idempotent: running it twice yields the
// same output as running it once. The pipeline must rely on that when
// re-processing persisted chapter text.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cleaner composes characters to NFC, then strips stray combining marks and
// invisible characters that break the synthesis engine's phoneme mapping.
// Composition runs first so "e" + COMBINING ACUTE becomes "é" instead of
// losing its accent.
var cleaner = transform.Chain(
	norm.NFC,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(isInvisible)),
)

// isInvisible reports zero-width and control characters (except newline and
// tab, which later whitespace handling owns).
func isInvisible(r rune) bool {
	switch r {
	case '\n', '\t':
		return false
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
}

// punctReplacer maps typographic punctuation to ASCII equivalents the engine
// pronounces reliably.
var punctReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"«", `"`, "»", `"`,
	"‘", "'", "’", "'", "‚", "'", "`", "'",
	"—", "-", "–", "-",
	"…", "...",
)

// abbrevReplacer expands common abbreviations to their spoken form.
// Every replacement is chosen so the output never re-matches a pattern,
// keeping Normalize idempotent.
var abbrevReplacer = strings.NewReplacer(
	"Mrs.", "Missus",
	"Mr.", "Mister",
	"Ms.", "Miss",
	"Dr.", "Doctor",
	"Jr.", "Junior",
	"Sr.", "Senior",
	"Co.", "Company",
	"Inc.", "Incorporated",
	"Ltd.", "Limited",
	"St.", "Street",
	"Ave.", "Avenue",
	"etc.", "et cetera",
	"vs.", "versus",
	"e.g.", "for example",
	"i.e.", "that is",
)

var (
	reURL          = regexp.MustCompile(`https?://\S+|www\.\S+`)
	reFootnoteRef  = regexp.MustCompile(`\[\d+\]|\^\d+`)
	reFootnoteNote = regexp.MustCompile(`(?i)\(note\s+\d+\)`)
	reSuperscript  = regexp.MustCompile(`[\x{00b9}\x{00b2}\x{00b3}\x{2070}-\x{2079}]+`)
	rePageInline   = regexp.MustCompile(`(?i)\[page \d+\]|page \d+ of \d+`)
	rePageLine     = regexp.MustCompile(`^\d{1,4}$`)
	reSpaceRun     = regexp.MustCompile(`[ \t]+`)
	reNewlineRun   = regexp.MustCompile(`\n{3,}`)
)

// Normalize converts raw chapter text into synthesis-safe text: Unicode NFC
// composition, invisible-character and combining-mark removal, ASCII
// punctuation, URL and footnote stripping, page-number-line removal,
// whitespace collapsing, and a guaranteed terminal sentence punctuation.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	if cleaned, _, err := transform.String(cleaner, text); err == nil {
		text = cleaned
	}

	text = punctReplacer.Replace(text)
	text = reURL.ReplaceAllString(text, "")
	text = abbrevReplacer.Replace(text)
	text = reFootnoteRef.ReplaceAllString(text, "")
	text = reFootnoteNote.ReplaceAllString(text, "")
	text = reSuperscript.ReplaceAllString(text, "")
	text = rePageInline.ReplaceAllString(text, "")
	text = dropPageNumberLines(text)
	text = collapseWhitespace(text)
	text = ensureTerminalPunct(text)

	// The terminal period, and the strips above, can complete an
	// abbreviation that was not one in the raw text ("Call the Dr" ->
	// "Call the Dr."). Expand once more and re-close the sentence so a
	// second Normalize is a no-op.
	text = abbrevReplacer.Replace(text)
	return ensureTerminalPunct(text)
}

// dropPageNumberLines removes lines that contain nothing but a page number.
func dropPageNumberLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if rePageLine.MatchString(strings.TrimSpace(line)) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// collapseWhitespace trims every line, folds space runs, and limits blank
// runs to a single paragraph break.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(reSpaceRun.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = reNewlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ensureTerminalPunct appends a period when the text does not already end in
// sentence punctuation, so the engine closes its final prosodic phrase.
func ensureTerminalPunct(text string) string {
	if text == "" {
		return text
	}
	switch last, _ := utf8.DecodeLastRuneInString(text); last {
	case '.', '!', '?':
		return text
	default:
		return text + "."
	}
}
