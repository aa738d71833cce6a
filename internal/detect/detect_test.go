package detect

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/lecternaudio/lectern/internal/book"
	"github.com/lecternaudio/lectern/internal/extract"
)

func epubDoc(units []string, toc []extract.TOCEntry) *extract.Document {
	doc := &extract.Document{
		Format:        book.FormatEPUB,
		TOC:           toc,
		UnitSeparator: "\n\n",
	}
	for i, text := range units {
		doc.Units = append(doc.Units, extract.Unit{Index: i, Text: text})
	}
	return doc
}

func TestDetectFromEPUBTOC(t *testing.T) {
	doc := epubDoc(
		[]string{
			"Intro\n\nThe beginning of the story.",
			"Conclusion\n\nThe end of the story.",
		},
		[]extract.TOCEntry{
			{Title: "Intro", Unit: 0, Level: 0},
			{Title: "Conclusion", Unit: 1, Level: 0},
		},
	)

	chapters, err := New(30, nil, nil).Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	for i, wantTitle := range []string{"Intro", "Conclusion"} {
		if chapters[i].Index != i {
			t.Errorf("chapter %d has index %d", i, chapters[i].Index)
		}
		if chapters[i].Title != wantTitle {
			t.Errorf("chapter %d title = %q, want %q", i, chapters[i].Title, wantTitle)
		}
		if chapters[i].Words == 0 {
			t.Errorf("chapter %d has zero words", i)
		}
	}
}

func TestDetectTOCTopLevelOnly(t *testing.T) {
	doc := epubDoc(
		[]string{"Part one text.", "Sub section text.", "Part two text."},
		[]extract.TOCEntry{
			{Title: "Part One", Unit: 0, Level: 0},
			{Title: "Nested", Unit: 1, Level: 1},
			{Title: "Part Two", Unit: 2, Level: 0},
		},
	)

	chapters, err := New(30, nil, nil).Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected nested entry ignored, got %d chapters", len(chapters))
	}
	if chapters[0].Title != "Part One" || chapters[1].Title != "Part Two" {
		t.Errorf("titles = %q, %q", chapters[0].Title, chapters[1].Title)
	}
}

func TestDetectPDFTOCRanges(t *testing.T) {
	doc := &extract.Document{
		Format: book.FormatPDF,
		Units: []extract.Unit{
			{Index: 0, Text: "page zero"},
			{Index: 1, Text: "page one"},
			{Index: 2, Text: "page two"},
			{Index: 3, Text: "page three"},
			{Index: 4, Text: "page four"},
		},
		TOC: []extract.TOCEntry{
			{Title: "One", Unit: 0, Level: 0},
			{Title: "Two", Unit: 2, Level: 0},
		},
		UnitSeparator: "\n",
	}

	chapters, err := New(30, nil, nil).Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].Text != "page zero\npage one" {
		t.Errorf("chapter 0 spans %q, want pages before next entry", chapters[0].Text)
	}
	if chapters[1].Text != "page two\npage three\npage four" {
		t.Errorf("chapter 1 spans %q, want pages through document end", chapters[1].Text)
	}
}

func TestDetectTOCSkipsEmptyEntries(t *testing.T) {
	doc := epubDoc(
		[]string{"Real chapter text.", "   \n  "},
		[]extract.TOCEntry{
			{Title: "Real", Unit: 0, Level: 0},
			{Title: "Ghost", Unit: 1, Level: 0},
		},
	)

	chapters, err := New(30, nil, nil).Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(chapters) != 1 || chapters[0].Title != "Real" {
		t.Fatalf("chapters = %+v, want only the non-empty entry", chapters)
	}
}

func TestDetectFromHeadings(t *testing.T) {
	text := "Chapter 1\nIt began at sea.\n\nMore of the first chapter.\n\nChapter 2\nIt ended ashore."
	doc := &extract.Document{
		Format:        book.FormatTXT,
		Units:         []extract.Unit{{Index: 0, Text: text}},
		UnitSeparator: "\n\n",
	}

	chapters, err := New(30, nil, nil).Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d: %+v", len(chapters), chapters)
	}
	if chapters[0].Title != "Chapter 1" || chapters[1].Title != "Chapter 2" {
		t.Errorf("titles = %q, %q", chapters[0].Title, chapters[1].Title)
	}
	if !strings.Contains(chapters[0].Text, "It began at sea.") {
		t.Errorf("chapter 0 text = %q", chapters[0].Text)
	}
	if !strings.HasPrefix(chapters[0].Text, "Chapter 1") {
		t.Errorf("heading line should stay in chapter body, got %q", chapters[0].Text)
	}
	if !strings.Contains(chapters[1].Text, "It ended ashore.") {
		t.Errorf("chapter 1 text = %q", chapters[1].Text)
	}
}

func TestDetectHeadingsKeepPreamble(t *testing.T) {
	text := "Front matter before any heading.\n\nChapter 5\nThe fifth part."
	doc := &extract.Document{
		Format:        book.FormatTXT,
		Units:         []extract.Unit{{Index: 0, Text: text}},
		UnitSeparator: "\n\n",
	}

	chapters, err := New(30, nil, nil).Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected preamble plus chapter, got %d: %+v", len(chapters), chapters)
	}
	if !strings.Contains(chapters[0].Text, "Front matter") {
		t.Errorf("preamble text lost: %q", chapters[0].Text)
	}
	if chapters[1].Title != "Chapter 5" {
		t.Errorf("chapter 1 title = %q", chapters[1].Title)
	}
}

func TestDetectMidSentenceNotHeading(t *testing.T) {
	text := "The words in chapter 2 were spoken aloud.\n\nNothing here looks like a heading line."
	doc := &extract.Document{
		Format:        book.FormatTXT,
		Title:         "Novel",
		Units:         []extract.Unit{{Index: 0, Text: text}},
		UnitSeparator: "\n\n",
	}

	chapters, err := New(30, nil, nil).Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(chapters) != 1 || chapters[0].Title != "Novel - Part 1" {
		t.Fatalf("expected size fallback, got %+v", chapters)
	}
}

func TestDetectSizeFallbackScenario(t *testing.T) {
	// 10,000 words with a 10 minute bound (1500 words) must give exactly
	// ceil(10000/1500) = 7 parts.
	text := strings.TrimSpace(strings.Repeat("word ", 10000))
	doc := &extract.Document{
		Format:        book.FormatTXT,
		Title:         "Big",
		Units:         []extract.Unit{{Index: 0, Text: text}},
		UnitSeparator: "\n\n",
	}

	chapters, err := New(10, nil, nil).Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(chapters) != 7 {
		t.Fatalf("expected 7 parts, got %d", len(chapters))
	}
	for i, ch := range chapters {
		if ch.Index != i {
			t.Errorf("part %d has index %d", i, ch.Index)
		}
		if want := fmt.Sprintf("Big - Part %d", i+1); ch.Title != want {
			t.Errorf("part %d title = %q, want %q", i, ch.Title, want)
		}
		if ch.Words > 1500 {
			t.Errorf("part %d has %d words, bound is 1500", i, ch.Words)
		}
	}
}

func TestDetectSplitsOversizedTOCChapter(t *testing.T) {
	big := strings.TrimSpace(strings.Repeat("w ", 2000))
	doc := epubDoc(
		[]string{big, "A short closing chapter."},
		[]extract.TOCEntry{
			{Title: "Big One", Unit: 0, Level: 0},
			{Title: "Small", Unit: 1, Level: 0},
		},
	)

	chapters, err := New(10, nil, nil).Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	wantTitles := []string{"Big One - Part 1", "Big One - Part 2", "Small"}
	if len(chapters) != len(wantTitles) {
		t.Fatalf("expected %d chapters, got %d", len(wantTitles), len(chapters))
	}
	for i, want := range wantTitles {
		if chapters[i].Title != want {
			t.Errorf("chapter %d title = %q, want %q", i, chapters[i].Title, want)
		}
		if chapters[i].Index != i {
			t.Errorf("chapter %d index = %d", i, chapters[i].Index)
		}
		if chapters[i].Words > 1500 {
			t.Errorf("chapter %d exceeds word bound: %d", i, chapters[i].Words)
		}
	}
}

func TestDetectDeterministic(t *testing.T) {
	text := "Chapter 1\nAlpha beta gamma.\n\nChapter 2\nDelta epsilon."
	doc := &extract.Document{
		Format:        book.FormatTXT,
		Units:         []extract.Unit{{Index: 0, Text: text}},
		UnitSeparator: "\n\n",
	}
	d := New(30, nil, nil)

	first, err := d.Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	second, err := d.Detect(doc)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("detection not deterministic:\n first: %+v\nsecond: %+v", first, second)
	}
}

func TestDetectEmptyDocument(t *testing.T) {
	_, err := New(30, nil, nil).Detect(&extract.Document{})
	var dErr *Error
	if !errors.As(err, &dErr) {
		t.Fatalf("expected *detect.Error, got %v", err)
	}
}

func TestIsHeading(t *testing.T) {
	d := New(30, nil, nil)
	tests := []struct {
		line string
		want bool
	}{
		{"Chapter 12", true},
		{"CHAPITRE 7", true},
		{"Part 3: The Return", true},
		{"Section 2", true},
		{"12. The Storm", true},
		{"7 The Visit", true},
		{"IV. Night Watch", true},
		{"Once upon a time", false},
		{"In chapter 3 we saw", false},
		{"", false},
		{strings.Repeat("x", 120), false},
	}

	for _, tt := range tests {
		if got := d.isHeading(tt.line); got != tt.want {
			t.Errorf("isHeading(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
