package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lecternaudio/lectern/internal/book"
	"github.com/lecternaudio/lectern/internal/detect"
	"github.com/lecternaudio/lectern/internal/extract"
	"github.com/lecternaudio/lectern/internal/home"
	"github.com/lecternaudio/lectern/internal/manifest"
	"github.com/lecternaudio/lectern/internal/textnorm"
)

// SplitOptions configure book splitting.
type SplitOptions struct {
	// MaxChapterMinutes bounds each chapter's estimated spoken duration.
	// Zero selects the detector default.
	MaxChapterMinutes int

	// TimestampIDs salts the book id with the split time so identical
	// sources get distinct books. Off by default so re-splitting the same
	// file resolves to the same book.
	TimestampIDs bool

	// Title and Author override the metadata extracted from the source.
	Title  string
	Author string

	// Matchers override the detector's heading matchers. Nil selects the
	// built-in set.
	Matchers []detect.HeadingMatcher
}

// Split runs the front half of the pipeline: extract the document, detect
// chapters, normalize each chapter's text, and persist everything under the
// book's home directory with a fresh manifest. Extraction and detection
// failures are fatal to the whole book; no partial manifest is written.
func Split(ctx context.Context, h *home.Dir, store *manifest.Store, path string, opts SplitOptions, logger *slog.Logger) (*manifest.Manifest, error) {
	if logger == nil {
		logger = slog.Default()
	}

	format, ok := book.ParseSourceFormat(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("unsupported source format %q", filepath.Ext(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	bookID := book.NewID(content, opts.TimestampIDs)

	extractor, err := extract.New(format, logger)
	if err != nil {
		return nil, err
	}
	doc, err := extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	detector := detect.New(opts.MaxChapterMinutes, opts.Matchers, logger)
	chapters, err := detector.Detect(doc)
	if err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		title = doc.Title
	}
	if title == "" {
		title = strippedBase(path)
	}
	author := opts.Author
	if author == "" {
		author = doc.Author
	}

	if err := h.EnsureBookDir(bookID); err != nil {
		return nil, fmt.Errorf("create book directory: %w", err)
	}
	if err := h.EnsureTextDir(bookID); err != nil {
		return nil, fmt.Errorf("create text directory: %w", err)
	}
	if err := os.WriteFile(h.SourcePath(bookID, string(format)), content, 0o644); err != nil {
		return nil, fmt.Errorf("keep source copy: %w", err)
	}

	m := &manifest.Manifest{
		Book: book.Book{
			ID:           bookID,
			Title:        title,
			Author:       author,
			SourceFormat: format,
			CreatedAt:    time.Now().UTC(),
		},
	}

	var totalSecs float64
	for _, ch := range chapters {
		cleaned := textnorm.Normalize(ch.Text)
		words := textnorm.WordCount(cleaned)

		textPath := h.ChapterTextPath(bookID, ch.Index)
		if err := os.WriteFile(textPath, []byte(cleaned), 0o644); err != nil {
			return nil, fmt.Errorf("persist chapter %d text: %w", ch.Index, err)
		}
		rel, err := filepath.Rel(h.BookDir(bookID), textPath)
		if err != nil {
			return nil, fmt.Errorf("chapter %d text ref: %w", ch.Index, err)
		}

		secs := book.EstimateSeconds(words)
		totalSecs += secs
		m.Chapters = append(m.Chapters, book.Chapter{
			Index:                 ch.Index,
			Title:                 ch.Title,
			TextRef:               filepath.ToSlash(rel),
			Filename:              book.ChapterFilename(ch.Index+1, title, author, ch.Title),
			Status:                book.ChapterPending,
			WordCount:             words,
			EstimatedDurationSecs: secs,
			Attempt:               1,
		})
	}
	m.Book.TotalChapters = len(m.Chapters)
	m.Book.EstimatedDurationSecs = totalSecs

	if err := store.Create(m); err != nil {
		return nil, err
	}

	logger.Info("book split",
		"book_id", bookID,
		"title", title,
		"format", format,
		"chapters", len(m.Chapters),
		"estimated_duration", time.Duration(totalSecs*float64(time.Second)).Round(time.Second),
	)
	return m, nil
}

// strippedBase returns the file name without its extension, a last-resort
// book title for sources with no metadata.
func strippedBase(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
