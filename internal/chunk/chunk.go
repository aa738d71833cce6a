// Package chunk plans synthesis-sized pieces of normalized chapter text.
//
// Chunks split only on paragraph boundaries. Joining all of a chapter's
// chunks with the paragraph separator reproduces the normalized text exactly,
// so chunking never loses or reorders content.
package chunk

import "strings"

// DefaultMaxChars bounds chunk size when the caller does not configure one.
// Sized for local engines that degrade on very long inputs.
const DefaultMaxChars = 800

// separator joins paragraphs within a chunk. Matches the paragraph break
// produced by text normalization.
const separator = "\n\n"

// A Chunk is one synthesis unit sent to the engine as a single request.
type Chunk struct {
	Index int    // zero-based position within the chapter
	Text  string // one or more whole paragraphs
}

// Plan splits text into chunks of at most maxChars characters, packing whole
// paragraphs greedily in order. A single paragraph longer than maxChars
// becomes its own oversized chunk rather than being split mid-paragraph.
// The result is deterministic for a given input.
func Plan(text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		chunks []Chunk
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: cur.String()})
		cur.Reset()
	}

	for _, p := range strings.Split(text, separator) {
		if p == "" {
			continue
		}
		switch {
		case cur.Len() == 0 && len(p) > maxChars:
			chunks = append(chunks, Chunk{Index: len(chunks), Text: p})
		case cur.Len() == 0:
			cur.WriteString(p)
		case cur.Len()+len(separator)+len(p) <= maxChars:
			cur.WriteString(separator)
			cur.WriteString(p)
		default:
			flush()
			if len(p) > maxChars {
				chunks = append(chunks, Chunk{Index: len(chunks), Text: p})
			} else {
				cur.WriteString(p)
			}
		}
	}
	flush()
	return chunks
}

// Join reassembles chunk texts with the paragraph separator. For chunks
// produced by Plan on normalized text this returns the original input.
func Join(chunks []Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, separator)
}
