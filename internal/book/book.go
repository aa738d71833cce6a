// Package book provides the shared domain types for the conversion pipeline.
// This package has no dependencies on other lectern packages to avoid import cycles.
package book

import "time"

// WordsPerMinute is the fixed narration rate used for duration estimates.
const WordsPerMinute = 150

// SourceFormat identifies the original document format.
type SourceFormat string

const (
	// FormatPDF is a PDF document.
	FormatPDF SourceFormat = "pdf"
	// FormatEPUB is an EPUB document.
	FormatEPUB SourceFormat = "epub"
	// FormatTXT is a plain text document.
	FormatTXT SourceFormat = "txt"
)

// ParseSourceFormat converts a string (or file extension) to a SourceFormat.
// Returns false if the string is not a supported format.
func ParseSourceFormat(s string) (SourceFormat, bool) {
	switch s {
	case "pdf", ".pdf":
		return FormatPDF, true
	case "epub", ".epub":
		return FormatEPUB, true
	case "txt", ".txt", "text":
		return FormatTXT, true
	default:
		return "", false
	}
}

// ChapterStatus tracks one chapter's progress through the pipeline.
type ChapterStatus string

const (
	// ChapterPending means the chapter has been detected but not yet synthesized.
	ChapterPending ChapterStatus = "pending"
	// ChapterProcessing means the chapter's chunks are being synthesized.
	ChapterProcessing ChapterStatus = "processing"
	// ChapterCompleted means the chapter audio was assembled and verified.
	ChapterCompleted ChapterStatus = "completed"
	// ChapterFailed means synthesis or assembly failed for this chapter.
	ChapterFailed ChapterStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s ChapterStatus) Terminal() bool {
	return s == ChapterCompleted || s == ChapterFailed
}

// CanTransitionTo reports whether a forward transition to next is allowed.
// Chapter state only moves forward; a failed chapter is never resurrected
// in place, it gets a fresh attempt record instead.
func (s ChapterStatus) CanTransitionTo(next ChapterStatus) bool {
	switch s {
	case ChapterPending:
		return next == ChapterProcessing
	case ChapterProcessing:
		return next == ChapterCompleted || next == ChapterFailed
	default:
		return false
	}
}

// JobStatus tracks a conversion job. Job is the only entity with a
// cancelled state; it is set at most once and never reversed.
type JobStatus string

const (
	// JobPending means the job has been created but not started.
	JobPending JobStatus = "pending"
	// JobProcessing means chapters are being synthesized.
	JobProcessing JobStatus = "processing"
	// JobCompleted means the job finished; some chapters may still have failed.
	JobCompleted JobStatus = "completed"
	// JobFailed means no chapter produced audio or a book-level error occurred.
	JobFailed JobStatus = "failed"
	// JobCancelled means the job was cancelled cooperatively between chapters.
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// CanTransitionTo reports whether a forward transition to next is allowed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobProcessing || next == JobCancelled || next == JobFailed
	case JobProcessing:
		return next == JobCompleted || next == JobFailed || next == JobCancelled
	default:
		return false
	}
}

// Book describes one converted document. Owned by the manifest store for
// the lifetime of a conversion run.
type Book struct {
	ID                    string       `json:"book_id"`
	Title                 string       `json:"title"`
	Author                string       `json:"author,omitempty"`
	SourceFormat          SourceFormat `json:"source_format"`
	CreatedAt             time.Time    `json:"created_at"`
	TotalChapters         int          `json:"total_chapters"`
	EstimatedDurationSecs float64      `json:"estimated_total_duration_seconds"`
}

// Chapter is one contiguous, titled segment of a book. Indices are 0-based
// and contiguous across the whole book; order never changes after detection.
type Chapter struct {
	Index                 int           `json:"index"`
	Title                 string        `json:"title"`
	TextRef               string        `json:"text_ref"` // cleaned text, relative to the book dir
	Filename              string        `json:"filename"` // derived sortable base name, no extension
	Status                ChapterStatus `json:"status"`
	WordCount             int           `json:"word_count"`
	EstimatedDurationSecs float64       `json:"estimated_duration_seconds"`
	AudioFile             string        `json:"audio_file,omitempty"` // relative to the book dir once completed
	Error                 string        `json:"error,omitempty"`
	Attempt               int           `json:"attempt"`
	History               []Attempt     `json:"history,omitempty"`
}

// Attempt preserves the outcome of a prior attempt at a chapter.
// Retrying a failed chapter appends here and resets the live record,
// so history is never rewritten.
type Attempt struct {
	Attempt    int           `json:"attempt"`
	Status     ChapterStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// EstimateSeconds converts a word count to estimated spoken seconds at the
// fixed narration rate.
func EstimateSeconds(wordCount int) float64 {
	return float64(wordCount) / WordsPerMinute * 60
}
