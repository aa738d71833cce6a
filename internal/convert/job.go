// Package convert drives a book through synthesis: it dispatches chapters
// onto a bounded worker pool, synthesizes each chapter's chunks in order,
// assembles chapter audio, and packages the finished audiobook archive,
// persisting every status change through the manifest store.
package convert

import (
	"time"

	"github.com/lecternaudio/lectern/internal/book"
)

// Job is one conversion run over a book. It is a view over the book's
// chapter statuses plus the run's own cancellation state; the only entity
// that can end up cancelled.
type Job struct {
	ID                string         `json:"job_id"`
	BookID            string         `json:"book_id"`
	Status            book.JobStatus `json:"status"`
	ChaptersCompleted int            `json:"chapters_completed"`
	TotalChapters     int            `json:"total_chapters"`
	CurrentChapter    *int           `json:"current_chapter,omitempty"`
	StartedAt         time.Time      `json:"started_at,omitempty"`
	CompletedAt       time.Time      `json:"completed_at,omitempty"`
	Error             string         `json:"error,omitempty"`
	OutputArchive     string         `json:"output_archive,omitempty"`
}

// Event is one progress report, emitted after a chapter reaches a terminal
// state and again when the job itself does. ChaptersCompleted never
// decreases across the events of one job.
type Event struct {
	JobID             string
	Status            book.JobStatus
	CurrentChapter    *int
	ChaptersCompleted int
	TotalChapters     int
}

// Sink receives progress events. Publish must not block; the runner only
// guarantees delivery attempts, never delivery.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish calls f.
func (f SinkFunc) Publish(e Event) { f(e) }

// ChannelSink forwards events to a buffered channel, dropping events when
// the receiver lags so a slow consumer never stalls synthesis.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink returns a sink buffering up to size events.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 16
	}
	return &ChannelSink{C: make(chan Event, size)}
}

// Publish attempts delivery without blocking.
func (s *ChannelSink) Publish(e Event) {
	select {
	case s.C <- e:
	default:
	}
}

var _ Sink = SinkFunc(nil)
var _ Sink = (*ChannelSink)(nil)
