package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lecternaudio/lectern/internal/book"
	"github.com/lecternaudio/lectern/internal/manifest"
)

const twoChapterSource = `Chapter 1

It was a dark and stormy night. The rain fell in torrents, except at
occasional intervals, when it was checked by a violent gust of wind.

Chapter 2

The morning came quietly. Everything that had seemed so loud the night
before was still.
`

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestSplitTxtHeadings(t *testing.T) {
	h := newTestHome(t)
	store := manifest.NewStore(h, nil)
	path := writeSource(t, "storm.txt", twoChapterSource)

	m, err := Split(context.Background(), h, store, path, SplitOptions{}, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	if len(m.Chapters) != 2 {
		t.Fatalf("got %d chapters, want 2", len(m.Chapters))
	}
	if m.Book.SourceFormat != book.FormatTXT {
		t.Errorf("source format = %s, want txt", m.Book.SourceFormat)
	}
	if m.Book.TotalChapters != 2 {
		t.Errorf("total_chapters = %d, want 2", m.Book.TotalChapters)
	}

	for i, ch := range m.Chapters {
		if ch.Index != i {
			t.Errorf("chapter %d has index %d", i, ch.Index)
		}
		if ch.Status != book.ChapterPending {
			t.Errorf("chapter %d status = %s, want pending", i, ch.Status)
		}
		if ch.Attempt != 1 {
			t.Errorf("chapter %d attempt = %d, want 1", i, ch.Attempt)
		}
		if ch.WordCount == 0 {
			t.Errorf("chapter %d has zero word count", i)
		}
		if ch.EstimatedDurationSecs <= 0 {
			t.Errorf("chapter %d has no duration estimate", i)
		}

		// Cleaned text is on disk where the text_ref points.
		text, err := os.ReadFile(filepath.Join(h.BookDir(m.Book.ID), ch.TextRef))
		if err != nil {
			t.Fatalf("chapter %d text missing: %v", i, err)
		}
		if len(text) == 0 {
			t.Errorf("chapter %d text empty", i)
		}
	}

	if m.Chapters[0].Title != "Chapter 1" || m.Chapters[1].Title != "Chapter 2" {
		t.Errorf("titles = %q, %q", m.Chapters[0].Title, m.Chapters[1].Title)
	}

	// Filenames sort in narration order.
	if m.Chapters[0].Filename >= m.Chapters[1].Filename {
		t.Errorf("filenames not sortable: %q >= %q", m.Chapters[0].Filename, m.Chapters[1].Filename)
	}

	// A reload sees the same persisted state.
	loaded, err := store.Load(m.Book.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Book.TotalChapters != 2 {
		t.Errorf("persisted total_chapters = %d, want 2", loaded.Book.TotalChapters)
	}
}

func TestSplitNormalizesText(t *testing.T) {
	h := newTestHome(t)
	store := manifest.NewStore(h, nil)
	path := writeSource(t, "smart.txt", "Chapter 1\n\nShe said “hello” — twice")

	m, err := Split(context.Background(), h, store, path, SplitOptions{}, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	text, err := os.ReadFile(filepath.Join(h.BookDir(m.Book.ID), m.Chapters[0].TextRef))
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	got := string(text)
	if strings.ContainsAny(got, "“”—") {
		t.Errorf("smart punctuation survived normalization: %q", got)
	}
	if !strings.HasSuffix(strings.TrimSpace(got), ".") {
		t.Errorf("text lacks terminal punctuation: %q", got)
	}
}

func TestSplitDeterministicID(t *testing.T) {
	path := writeSource(t, "book.txt", twoChapterSource)

	h1 := newTestHome(t)
	m1, err := Split(context.Background(), h1, manifest.NewStore(h1, nil), path, SplitOptions{}, nil)
	if err != nil {
		t.Fatalf("first Split: %v", err)
	}
	h2 := newTestHome(t)
	m2, err := Split(context.Background(), h2, manifest.NewStore(h2, nil), path, SplitOptions{}, nil)
	if err != nil {
		t.Fatalf("second Split: %v", err)
	}
	if m1.Book.ID != m2.Book.ID {
		t.Errorf("identical sources got different ids: %s vs %s", m1.Book.ID, m2.Book.ID)
	}
	if len(m1.Chapters) != len(m2.Chapters) {
		t.Fatalf("chapter counts differ: %d vs %d", len(m1.Chapters), len(m2.Chapters))
	}
	for i := range m1.Chapters {
		if m1.Chapters[i].Title != m2.Chapters[i].Title {
			t.Errorf("chapter %d titles differ: %q vs %q", i, m1.Chapters[i].Title, m2.Chapters[i].Title)
		}
	}
}

func TestSplitWordBound(t *testing.T) {
	h := newTestHome(t)
	store := manifest.NewStore(h, nil)

	// ~900 words with no headings forces the size fallback at a 1-minute
	// (150 word) bound.
	path := writeSource(t, "long.txt", strings.TrimSpace(strings.Repeat("lorem ipsum dolor ", 300)))

	m, err := Split(context.Background(), h, store, path, SplitOptions{MaxChapterMinutes: 1}, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(m.Chapters) < 2 {
		t.Fatalf("expected a size split, got %d chapters", len(m.Chapters))
	}
	for _, ch := range m.Chapters {
		if ch.WordCount > 1*book.WordsPerMinute {
			t.Errorf("chapter %d has %d words, want <= %d", ch.Index, ch.WordCount, book.WordsPerMinute)
		}
	}
}

func TestSplitSourceCopyKept(t *testing.T) {
	h := newTestHome(t)
	store := manifest.NewStore(h, nil)
	path := writeSource(t, "keep.txt", twoChapterSource)

	m, err := Split(context.Background(), h, store, path, SplitOptions{}, nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	copied, err := os.ReadFile(h.SourcePath(m.Book.ID, "txt"))
	if err != nil {
		t.Fatalf("source copy missing: %v", err)
	}
	if string(copied) != twoChapterSource {
		t.Error("source copy does not match the original")
	}
}

func TestSplitUnsupportedFormat(t *testing.T) {
	h := newTestHome(t)
	store := manifest.NewStore(h, nil)
	path := writeSource(t, "book.mobi", "irrelevant")

	if _, err := Split(context.Background(), h, store, path, SplitOptions{}, nil); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
