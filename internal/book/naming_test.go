package book

import (
	"sort"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChapterFilename(t *testing.T) {
	tests := []struct {
		name    string
		num     int
		book    string
		author  string
		chapter string
		want    string
	}{
		{
			name:    "plain components",
			num:     1,
			book:    "Moby Dick",
			author:  "Melville",
			chapter: "Loomings",
			want:    "001_Moby_Dick_Melville_Loomings",
		},
		{
			name:    "unsafe characters stripped",
			num:     2,
			book:    `The "Book": Part/One`,
			author:  "A<uthor>",
			chapter: "What?*",
			want:    "002_The_Book_PartOne_Author_What",
		},
		{
			name:    "missing author",
			num:     3,
			book:    "Title",
			author:  "",
			chapter: "Intro",
			want:    "003_Title_Unknown_Intro",
		},
		{
			name:    "missing chapter title",
			num:     12,
			book:    "Title",
			author:  "Author",
			chapter: "",
			want:    "012_Title_Author_Chapter_12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChapterFilename(tt.num, tt.book, tt.author, tt.chapter)
			if got != tt.want {
				t.Errorf("ChapterFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChapterFilenameLengthCaps(t *testing.T) {
	long := strings.Repeat("Verylongword ", 20)
	got := ChapterFilename(1, long, long, long)

	parts := strings.SplitN(got, "_", 2)
	if len(parts) != 2 || parts[0] != "001" {
		t.Fatalf("expected numeric prefix, got %q", got)
	}
	// 3-digit prefix + three capped components + separators.
	if len(got) > 3+1+maxTitleLen+1+maxAuthorLen+1+maxChapterLen {
		t.Errorf("filename too long (%d): %q", len(got), got)
	}
}

func TestChapterFilenameUnicodeSafe(t *testing.T) {
	got := ChapterFilename(1, strings.Repeat("é", 40), "Mérimée", "Chapitre Premier")
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
}

func TestChapterFilenameSortOrder(t *testing.T) {
	var names []string
	for i := 1; i <= 12; i++ {
		names = append(names, ChapterFilename(i, "Book", "Author", "Ch"))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("filenames do not sort in narration order: %v", names)
	}
}
