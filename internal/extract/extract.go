// Package extract turns source documents (PDF, EPUB, plain text) into
// ordered text units plus optional structure hints for chapter detection.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lecternaudio/lectern/internal/book"
)

// Extractor produces a Document from a source file on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// Document is the extraction result: raw text in reading order, split into
// the source's natural units (PDF pages, EPUB spine items, or the whole file
// for plain text), plus whatever table of contents the source carries.
type Document struct {
	Format book.SourceFormat
	Title  string // from source metadata, may be empty
	Author string // from source metadata, may be empty

	// Units hold raw text in reading order. Unit indices are stable and
	// referenced by TOC entries.
	Units []Unit

	// TOC lists the source's own table of contents, flattened. Empty when
	// the source has none.
	TOC []TOCEntry

	// UnitSeparator joins unit text when assembling ranges. PDF pages join
	// with a line break since pages split mid-sentence; spine items join
	// with a paragraph break.
	UnitSeparator string
}

// Unit is one naturally delimited piece of source text.
type Unit struct {
	Index int
	Label string // page number or spine href, for diagnostics
	Text  string
}

// TOCEntry points a contents title at the unit where it starts.
type TOCEntry struct {
	Title string
	Unit  int // index into Document.Units
	Level int // nesting depth, 0 for top level
}

// TextRange joins the text of units [from, to) with the document's unit
// separator. Bounds are clamped to the unit list.
func (d *Document) TextRange(from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(d.Units) {
		to = len(d.Units)
	}
	if from >= to {
		return ""
	}
	sep := d.UnitSeparator
	if sep == "" {
		sep = "\n\n"
	}
	parts := make([]string, 0, to-from)
	for _, u := range d.Units[from:to] {
		parts = append(parts, u.Text)
	}
	return strings.Join(parts, sep)
}

// FullText joins every unit with the document's unit separator.
func (d *Document) FullText() string {
	return d.TextRange(0, len(d.Units))
}

// Error is a book-fatal extraction failure. No chapters exist yet when
// extraction fails, so the whole conversion fails with this error.
type Error struct {
	Format book.SourceFormat
	Path   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s %q: %v", e.Format, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns the extractor for a source format.
func New(format book.SourceFormat, logger *slog.Logger) (Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch format {
	case book.FormatPDF:
		return NewPDF(logger), nil
	case book.FormatEPUB:
		return NewEPUB(logger), nil
	case book.FormatTXT:
		return NewText(), nil
	default:
		return nil, &Error{Format: format, Err: fmt.Errorf("unsupported source format")}
	}
}
