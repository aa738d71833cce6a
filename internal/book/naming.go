package book

import (
	"fmt"
	"regexp"
	"strings"
)

// Component length caps for derived filenames. Keeps names usable on
// filesystems with path limits while staying human-readable.
const (
	maxTitleLen   = 30
	maxAuthorLen  = 20
	maxChapterLen = 30
)

var (
	unsafeChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	underscoreRe = regexp.MustCompile(`_+`)
)

// ChapterFilename derives the sortable base name for a chapter's audio file:
//
//	003_Moby_Dick_Melville_The_Spouter_Inn
//
// num is 1-based so filenames match track numbering in players. The three
// name components are sanitized and length-capped; lexical sort order equals
// narration order.
func ChapterFilename(num int, bookTitle, author, chapterTitle string) string {
	b := sanitizeComponent(bookTitle, maxTitleLen)
	a := sanitizeComponent(author, maxAuthorLen)
	c := sanitizeComponent(chapterTitle, maxChapterLen)

	if b == "" {
		b = "Book"
	}
	if a == "" {
		a = "Unknown"
	}
	if c == "" {
		c = fmt.Sprintf("Chapter_%d", num)
	}

	return fmt.Sprintf("%03d_%s_%s_%s", num, b, a, c)
}

// sanitizeComponent strips characters that are unsafe in filenames,
// collapses whitespace to underscores, and caps the length.
func sanitizeComponent(s string, maxLen int) string {
	s = unsafeChars.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(strings.TrimSpace(s), "_")
	s = underscoreRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")

	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
		s = strings.Trim(s, "_.")
	}
	return s
}
