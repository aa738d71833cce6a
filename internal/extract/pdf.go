package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/lecternaudio/lectern/internal/book"
)

const pdftotextBinary = "pdftotext"

// PDF extracts text with pdftotext (poppler-utils) and reads structure
// through pdfcpu. pdfcpu validates the file and exposes the outline, but
// does not decode page text, so the body comes from the subprocess.
type PDF struct {
	logger *slog.Logger
	binary string
}

// NewPDF returns a PDF extractor.
func NewPDF(logger *slog.Logger) *PDF {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDF{logger: logger, binary: pdftotextBinary}
}

// Extract runs pdftotext over the whole file once and splits the output on
// form feeds, yielding one unit per page. Outline bookmarks become TOC
// entries pointing at their first page.
func (p *PDF) Extract(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Format: book.FormatPDF, Path: path, Err: err}
	}
	defer f.Close()

	pageCount, err := api.PageCount(f, nil)
	if err != nil {
		return nil, &Error{Format: book.FormatPDF, Path: path, Err: fmt.Errorf("failed to get page count: %w", err)}
	}

	text, err := p.runPdftotext(ctx, path)
	if err != nil {
		return nil, &Error{Format: book.FormatPDF, Path: path, Err: err}
	}

	units := pageUnits(text, pageCount)
	if !anyText(units) {
		return nil, &Error{
			Format: book.FormatPDF,
			Path:   path,
			Err:    fmt.Errorf("no extractable text in %d pages, file may be scanned images without a text layer", pageCount),
		}
	}

	doc := &Document{
		Format:        book.FormatPDF,
		Units:         units,
		UnitSeparator: "\n",
	}

	// An outline is optional; many PDFs have none and some older files
	// carry outlines pdfcpu cannot parse. Either way detection falls back
	// to heading scanning.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		p.logger.Debug("cannot reread pdf for outline", "path", path, "error", err)
	} else if bms, err := api.Bookmarks(f, nil); err != nil {
		p.logger.Debug("no usable pdf outline", "path", path, "error", err)
	} else {
		doc.TOC = tocFromBookmarks(bms, len(doc.Units))
	}

	p.logger.Info("extracted pdf",
		"path", path,
		"pages", len(doc.Units),
		"toc_entries", len(doc.TOC),
	)
	return doc, nil
}

// runPdftotext invokes pdftotext once for the whole document. Pages arrive
// on stdout separated by form feed characters.
func (p *PDF) runPdftotext(ctx context.Context, path string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, "-enc", "UTF-8", path, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w (output: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// pageUnits splits pdftotext output into per-page units. The trailing form
// feed produces an empty final element, which is dropped so unit count
// matches the page count. Blank pages keep their slot since TOC entries
// reference page numbers.
//
// TODO: dehyphenate line-break hyphens from pdftotext output before
// normalization.
func pageUnits(text string, pageCount int) []Unit {
	pages := strings.Split(text, "\f")
	if n := len(pages); n > pageCount && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}

	units := make([]Unit, len(pages))
	for i, page := range pages {
		units[i] = Unit{
			Index: i,
			Label: "page " + strconv.Itoa(i+1),
			Text:  strings.TrimRight(page, "\n"),
		}
	}
	return units
}

func anyText(units []Unit) bool {
	for _, u := range units {
		if strings.TrimSpace(u.Text) != "" {
			return true
		}
	}
	return false
}

// tocFromBookmarks flattens the outline tree depth first. PageFrom is
// 1-based; entries pointing past the extracted pages are dropped.
func tocFromBookmarks(bms []pdfcpu.Bookmark, unitCount int) []TOCEntry {
	var toc []TOCEntry
	var walk func(bms []pdfcpu.Bookmark, level int)
	walk = func(bms []pdfcpu.Bookmark, level int) {
		for _, bm := range bms {
			title := strings.TrimSpace(bm.Title)
			unit := bm.PageFrom - 1
			if title != "" && unit >= 0 && unit < unitCount {
				toc = append(toc, TOCEntry{Title: title, Unit: unit, Level: level})
			}
			if len(bm.Kids) > 0 {
				walk(bm.Kids, level+1)
			}
		}
	}
	walk(bms, 0)
	return toc
}
