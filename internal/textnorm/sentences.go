package textnorm

import "strings"

// spokenAbbreviations lists dotted tokens whose trailing period does not end
// a sentence. Normalize expands several of these to full words, but Sentences
// has to stay correct on raw text as well.
var spokenAbbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "rev": {},
	"gen": {}, "hon": {}, "capt": {}, "lt": {}, "col": {}, "sgt": {},
	"sr": {}, "jr": {}, "st": {}, "ave": {}, "blvd": {}, "rd": {},
	"co": {}, "corp": {}, "inc": {}, "ltd": {}, "dept": {}, "univ": {},
	"no": {}, "vol": {}, "pp": {}, "ed": {}, "fig": {}, "ch": {}, "sec": {},
	"approx": {}, "appt": {}, "est": {}, "min": {}, "max": {},
	"etc": {}, "vs": {}, "al": {},
	"e.g": {}, "i.e": {}, "a.m": {}, "p.m": {}, "u.s": {}, "u.k": {},
}

// Sentences splits text into sentences on [.!?] boundaries. It keeps
// abbreviations, decimal numbers, initials, and ellipses intact, and only
// splits where the following token plausibly starts a new sentence. Internal
// whitespace is flattened, so the result is for counting and prosody
// estimation, not for reconstructing the input.
func Sentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if c == '.' && periodInsideToken(text, i) {
			continue
		}

		// Carry trailing quotes and brackets with the sentence.
		end := i + 1
		for end < len(text) && isClosingPunct(text[end]) {
			end++
		}
		if end >= len(text) {
			out = append(out, text[start:])
			start = len(text)
			break
		}
		if text[end] != ' ' {
			continue
		}
		next := end + 1
		for next < len(text) && text[next] == ' ' {
			next++
		}
		if next >= len(text) || !startsSentence(text[next]) {
			continue
		}

		out = append(out, text[start:end])
		start = next
		i = next - 1
	}

	if start < len(text) {
		if tail := strings.TrimSpace(text[start:]); tail != "" {
			out = append(out, tail)
		}
	}
	return out
}

// SentenceCount reports how many sentences Sentences finds in text.
func SentenceCount(text string) int {
	return len(Sentences(text))
}

// WordCount reports the number of whitespace-delimited words in text. All
// duration estimates share this definition.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// periodInsideToken reports whether the period at index i belongs to an
// ellipsis, a decimal number, a single-letter initial, or a known
// abbreviation rather than ending a sentence.
func periodInsideToken(s string, i int) bool {
	if i > 0 && s[i-1] == '.' {
		return true
	}
	if i+1 < len(s) && s[i+1] == '.' {
		return true
	}
	if i > 0 && i+1 < len(s) && isASCIIDigit(s[i-1]) && isASCIIDigit(s[i+1]) {
		return true
	}
	tok := tokenBefore(s, i)
	if len(tok) == 1 && tok[0] >= 'A' && tok[0] <= 'Z' {
		return true
	}
	_, ok := spokenAbbreviations[strings.ToLower(tok)]
	return ok
}

// tokenBefore returns the word immediately preceding index i. Periods are
// part of the token so dotted abbreviations like "e.g." survive intact.
func tokenBefore(s string, i int) string {
	j := i
	for j > 0 {
		switch s[j-1] {
		case ' ', '(', '[', '"', '\'':
			return s[j:i]
		}
		j--
	}
	return s[:i]
}

func isClosingPunct(c byte) bool {
	switch c {
	case '"', '\'', ')', ']':
		return true
	}
	return false
}

// startsSentence reports whether c plausibly opens a new sentence: an upper
// case letter, a digit, or opening punctuation.
func startsSentence(c byte) bool {
	if c >= 'A' && c <= 'Z' {
		return true
	}
	if isASCIIDigit(c) {
		return true
	}
	switch c {
	case '"', '\'', '(', '[':
		return true
	}
	return false
}

func isASCIIDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
