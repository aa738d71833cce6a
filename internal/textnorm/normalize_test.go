package textnorm

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "smart quotes and dashes become ascii",
			input: "“Hello,” she said — twice – and left…",
			want:  `"Hello," she said - twice - and left...`,
		},
		{
			name:  "guillemets become double quotes",
			input: "«Bonjour» he offered.",
			want:  `"Bonjour" he offered.`,
		},
		{
			name:  "zero width characters removed",
			input: "in\u200bvisible sep\u200carator\ufeff here.",
			want:  "invisible separator here.",
		},
		{
			name:  "combining marks compose before stripping",
			input: "cafe\u0301 stays accented.",
			want:  "café stays accented.",
		},
		{
			name:  "urls removed",
			input: "See https://example.com/page and www.example.org for more.",
			want:  "See and for more.",
		},
		{
			name:  "abbreviations expanded",
			input: "Dr. Smith met Mr. Jones, e.g. at the clinic.",
			want:  "Doctor Smith met Mister Jones, for example at the clinic.",
		},
		{
			name:  "footnote markers removed",
			input: "A claim[12] with proof^3 (Note 4) attached.",
			want:  "A claim with proof attached.",
		},
		{
			name:  "superscript digits removed",
			input: "energy equals mc² indeed.",
			want:  "energy equals mc indeed.",
		},
		{
			name:  "page number lines dropped",
			input: "End of one page.\n  42  \nStart of the next.",
			want:  "End of one page.\nStart of the next.",
		},
		{
			name:  "inline page references removed",
			input: "As shown [Page 12] on Page 3 of 250 here.",
			want:  "As shown on here.",
		},
		{
			name:  "whitespace collapsed and paragraphs kept",
			input: "First   line\t here.\n\n\n\nSecond  paragraph.",
			want:  "First line here.\n\nSecond paragraph.",
		},
		{
			name:  "carriage returns become newlines",
			input: "one.\r\ntwo.\rthree.",
			want:  "one.\ntwo.\nthree.",
		},
		{
			name:  "terminal period appended",
			input: "The story ends here",
			want:  "The story ends here.",
		},
		{
			name:  "existing terminal punctuation kept",
			input: "Did it end?",
			want:  "Did it end?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"Plain sentence.",
		"“Quoted” — dashed… and\u200b hidden.",
		"Dr. Smith visited https://example.com on Page 3 of 9.\n\n\n  17  \nNext paragraph[4] here",
		"cafe\u0301 naïve re\u0301sume\u0301",
		"No terminal punctuation at all",
		"Multi\n\nparagraph\n\n\ntext   with\tspace runs",
		"Call the Dr",
		"He lives on Main St.",
		"They hired Smith Jr",
		"Main St[4]",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q:\n once: %q\ntwice: %q", input, once, twice)
		}
	}
}

func TestNormalizeParagraphShape(t *testing.T) {
	got := Normalize("Alpha first.\n\n\nBeta   second.\n\nGamma third.")

	paragraphs := strings.Split(got, "\n\n")
	if len(paragraphs) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d: %q", len(paragraphs), got)
	}
	for _, p := range paragraphs {
		if p != strings.TrimSpace(p) {
			t.Errorf("paragraph %q has surrounding whitespace", p)
		}
		if strings.Contains(p, "  ") {
			t.Errorf("paragraph %q contains a space run", p)
		}
	}
}
