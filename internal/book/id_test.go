package book

import (
	"strings"
	"testing"
)

func TestSaltedID(t *testing.T) {
	content := []byte("call me ishmael")

	t.Run("deterministic without salt", func(t *testing.T) {
		a := saltedID(content, "")
		b := saltedID(content, "")
		if a != b {
			t.Errorf("same content produced different ids: %s vs %s", a, b)
		}
	})

	t.Run("salt changes the id", func(t *testing.T) {
		a := saltedID(content, "")
		b := saltedID(content, "1724630400000000000")
		if a == b {
			t.Error("salted id should differ from unsalted id")
		}
	})

	t.Run("different content different id", func(t *testing.T) {
		a := saltedID([]byte("book one"), "")
		b := saltedID([]byte("book two"), "")
		if a == b {
			t.Error("different content produced the same id")
		}
	})

	t.Run("id shape", func(t *testing.T) {
		id := saltedID(content, "")
		if len(id) != IDLength {
			t.Fatalf("id length = %d, want %d", len(id), IDLength)
		}
		if strings.ToLower(id) != id {
			t.Errorf("id should be lowercase hex, got %s", id)
		}
	})
}

func TestNewID(t *testing.T) {
	content := []byte("some document bytes")

	unsalted := NewID(content, false)
	if unsalted != saltedID(content, "") {
		t.Error("unsalted NewID should equal the pure content hash")
	}

	salted := NewID(content, true)
	if len(salted) != IDLength {
		t.Fatalf("salted id length = %d, want %d", len(salted), IDLength)
	}
	if salted == unsalted {
		t.Error("timestamp-salted id collided with the content hash")
	}
}

func TestChapterStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ChapterStatus
		want     bool
	}{
		{ChapterPending, ChapterProcessing, true},
		{ChapterProcessing, ChapterCompleted, true},
		{ChapterProcessing, ChapterFailed, true},
		{ChapterPending, ChapterCompleted, false},
		{ChapterCompleted, ChapterFailed, false},
		{ChapterFailed, ChapterProcessing, false},
		{ChapterFailed, ChapterPending, false},
		{ChapterCompleted, ChapterProcessing, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobPending, JobProcessing, true},
		{JobPending, JobCancelled, true},
		{JobProcessing, JobCompleted, true},
		{JobProcessing, JobFailed, true},
		{JobProcessing, JobCancelled, true},
		{JobCancelled, JobProcessing, false},
		{JobCompleted, JobFailed, false},
		{JobFailed, JobProcessing, false},
		{JobCancelled, JobCancelled, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	for _, s := range []JobStatus{JobCompleted, JobFailed, JobCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobPending, JobProcessing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
