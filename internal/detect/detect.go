// Package detect turns an extracted document into an ordered chapter list.
//
// Three strategies run in priority order, first success wins: the source's
// own table of contents, heading-pattern scanning, and finally a plain size
// split. Every strategy's output then passes through duration-bound
// post-processing, so no chapter ever exceeds the configured maximum spoken
// length. Detection is deterministic for a fixed document and configuration.
package detect

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lecternaudio/lectern/internal/book"
	"github.com/lecternaudio/lectern/internal/extract"
	"github.com/lecternaudio/lectern/internal/textnorm"
)

// DefaultMaxChapterMinutes bounds chapter spoken duration when the caller
// does not configure one.
const DefaultMaxChapterMinutes = 30

// maxHeadingLen rejects lines too long to plausibly be a chapter heading.
const maxHeadingLen = 100

// Chapter is a detected chapter before normalization and persistence.
// Indices are contiguous from zero and final; nothing downstream reorders.
type Chapter struct {
	Index int
	Title string
	Text  string // raw text, not yet normalized
	Words int
}

// Error is a book-fatal detection failure. No partial chapter list
// accompanies it.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("chapter detection: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detector splits documents into chapters bounded by spoken duration.
type Detector struct {
	maxWords int
	matchers []HeadingMatcher
	logger   *slog.Logger
}

// New returns a Detector. maxChapterMinutes bounds each chapter's estimated
// spoken duration; zero selects the default. A nil matcher list selects the
// built-in matchers.
func New(maxChapterMinutes int, matchers []HeadingMatcher, logger *slog.Logger) *Detector {
	if maxChapterMinutes <= 0 {
		maxChapterMinutes = DefaultMaxChapterMinutes
	}
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		maxWords: maxChapterMinutes * book.WordsPerMinute,
		matchers: matchers,
		logger:   logger,
	}
}

// Detect returns the ordered chapter list for doc.
func (d *Detector) Detect(doc *extract.Document) ([]Chapter, error) {
	if doc == nil || len(doc.Units) == 0 {
		return nil, &Error{Err: fmt.Errorf("document has no text units")}
	}

	chapters := d.fromTOC(doc)
	strategy := "toc"
	if len(chapters) == 0 {
		chapters = d.fromHeadings(doc)
		strategy = "headings"
	}
	if len(chapters) == 0 {
		title := doc.Title
		if title == "" {
			title = "Full Book"
		}
		chapters = d.splitBySize(doc.FullText(), title)
		strategy = "size"
	}
	if len(chapters) == 0 {
		return nil, &Error{Err: fmt.Errorf("document produced no chapters")}
	}

	out := d.boundDuration(chapters)
	for i := range out {
		out[i].Index = i
	}

	d.logger.Info("detected chapters",
		"strategy", strategy,
		"chapters", len(out),
		"max_words", d.maxWords,
	)
	return out, nil
}

// fromTOC builds chapters from the document's own table of contents, using
// top-level entries only. For PDFs a chapter spans pages up to the next
// top-level entry; for EPUBs each entry claims its own spine document.
// Entries out of reading order or pointing at empty text are dropped.
func (d *Detector) fromTOC(doc *extract.Document) []Chapter {
	var tops []extract.TOCEntry
	lastUnit := -1
	for _, e := range doc.TOC {
		if e.Level != 0 || e.Unit <= lastUnit {
			continue
		}
		tops = append(tops, e)
		lastUnit = e.Unit
	}
	if len(tops) == 0 {
		return nil
	}

	rangeBased := doc.Format == book.FormatPDF
	var chapters []Chapter
	for i, e := range tops {
		var text string
		if rangeBased {
			end := len(doc.Units)
			if i+1 < len(tops) {
				end = tops[i+1].Unit
			}
			text = doc.TextRange(e.Unit, end)
		} else {
			text = doc.TextRange(e.Unit, e.Unit+1)
		}
		if strings.TrimSpace(text) == "" {
			d.logger.Debug("toc entry has no text, skipping", "title", e.Title)
			continue
		}
		chapters = append(chapters, Chapter{
			Title: e.Title,
			Text:  text,
			Words: textnorm.WordCount(text),
		})
	}
	return chapters
}

// fromHeadings scans paragraph-initial lines for chapter headings. A match
// starts a new chapter; following text accumulates into it until the next
// match. Text before the first heading survives as a leading chapter.
func (d *Detector) fromHeadings(doc *extract.Document) []Chapter {
	paragraphBreaks := doc.UnitSeparator != "\n"

	var (
		chapters []Chapter
		curLines []string
		title    string
		headings int
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(curLines, "\n"))
		curLines = nil
		if text == "" {
			return
		}
		t := title
		if t == "" {
			t = "Chapter 1"
		}
		chapters = append(chapters, Chapter{
			Title: t,
			Text:  text,
			Words: textnorm.WordCount(text),
		})
	}

	for ui, u := range doc.Units {
		if ui > 0 && len(curLines) > 0 && paragraphBreaks {
			curLines = append(curLines, "")
		}
		prevBlank := true
		for _, line := range strings.Split(u.Text, "\n") {
			trimmed := strings.TrimSpace(line)
			if prevBlank && d.isHeading(trimmed) {
				flush()
				title = trimmed
				headings++
			}
			curLines = append(curLines, line)
			prevBlank = trimmed == ""
		}
	}
	flush()

	if headings == 0 {
		return nil
	}
	return chapters
}

// isHeading reports whether a trimmed paragraph-initial line matches any
// heading matcher.
func (d *Detector) isHeading(line string) bool {
	if line == "" || len(line) > maxHeadingLen {
		return false
	}
	for _, m := range d.matchers {
		if m.Pattern.MatchString(line) {
			return true
		}
	}
	return false
}

// splitBySize cuts text into word-count-bounded parts titled
// "<baseTitle> - Part k".
func (d *Detector) splitBySize(text, baseTitle string) []Chapter {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chapters []Chapter
	for i := 0; i < len(words); i += d.maxWords {
		end := min(i+d.maxWords, len(words))
		chapters = append(chapters, Chapter{
			Title: fmt.Sprintf("%s - Part %d", baseTitle, len(chapters)+1),
			Text:  strings.Join(words[i:end], " "),
			Words: end - i,
		})
	}
	return chapters
}

// boundDuration splits any chapter whose word count exceeds the duration
// bound, preserving order so re-indexing keeps global contiguity.
func (d *Detector) boundDuration(chapters []Chapter) []Chapter {
	out := make([]Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if ch.Words > d.maxWords {
			out = append(out, d.splitBySize(ch.Text, ch.Title)...)
			continue
		}
		out = append(out, ch)
	}
	return out
}
