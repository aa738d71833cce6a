// Package manifest persists Book and Chapter state as a JSON document per
// book, the single source of truth for a conversion run.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/lecternaudio/lectern/internal/book"
	"github.com/lecternaudio/lectern/internal/home"
)

var (
	// ErrNotFound is returned when no manifest exists for a book id.
	ErrNotFound = errors.New("manifest not found")

	// ErrBadTransition is returned when a status update would move a
	// chapter or job backwards.
	ErrBadTransition = errors.New("invalid status transition")
)

// Manifest is the persisted record of a book and its chapters.
type Manifest struct {
	Book     book.Book      `json:"book"`
	Chapters []book.Chapter `json:"chapters"`
}

// Chapter returns the chapter with the given index, or nil.
func (m *Manifest) Chapter(index int) *book.Chapter {
	for i := range m.Chapters {
		if m.Chapters[i].Index == index {
			return &m.Chapters[i]
		}
	}
	return nil
}

// CompletedCount returns the number of completed chapters.
func (m *Manifest) CompletedCount() int {
	n := 0
	for i := range m.Chapters {
		if m.Chapters[i].Status == book.ChapterCompleted {
			n++
		}
	}
	return n
}

// AllTerminal reports whether every chapter reached a terminal state.
func (m *Manifest) AllTerminal() bool {
	for i := range m.Chapters {
		if !m.Chapters[i].Status.Terminal() {
			return false
		}
	}
	return true
}

// Store reads and writes manifests under the lectern home directory.
// All mutations are serialized behind one mutex (single writer) and written
// atomically (temp file + rename). Writing identical content produces a
// byte-identical file, so retried writes are safe.
type Store struct {
	mu     sync.Mutex
	home   *home.Dir
	logger *slog.Logger
}

// NewStore creates a manifest store rooted at the given home directory.
func NewStore(h *home.Dir, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{home: h, logger: logger}
}

// Create writes the initial manifest for a book. The book directory is
// created if needed; an existing manifest for the same id is overwritten
// (same content ⇒ same bytes, so re-splitting an identical upload is a no-op).
func (s *Store) Create(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateManifest(m); err != nil {
		return err
	}
	if err := s.home.EnsureBookDir(m.Book.ID); err != nil {
		return fmt.Errorf("failed to create book directory: %w", err)
	}
	return s.write(m)
}

// Load reads and validates the manifest for a book.
func (s *Store) Load(bookID string) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(bookID)
}

// Save rewrites a whole manifest after validating it.
func (s *Store) Save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateManifest(m); err != nil {
		return err
	}
	return s.write(m)
}

// BeginChapter transitions a chapter to processing.
func (s *Store) BeginChapter(bookID string, index int) error {
	return s.updateChapter(bookID, index, func(ch *book.Chapter) error {
		return transition(ch, book.ChapterProcessing)
	})
}

// CompleteChapter transitions a chapter to completed and records its audio
// file. The referenced file must already exist and be non-empty; a dangling
// audio_file never enters the manifest.
func (s *Store) CompleteChapter(bookID string, index int, audioFile string) error {
	info, err := os.Stat(s.home.ChapterAudioPath(bookID, audioFile))
	if err != nil {
		return fmt.Errorf("chapter %d audio missing: %w", index, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("chapter %d audio file is empty", index)
	}

	return s.updateChapter(bookID, index, func(ch *book.Chapter) error {
		if err := transition(ch, book.ChapterCompleted); err != nil {
			return err
		}
		ch.AudioFile = "audio/" + audioFile + ".wav"
		ch.Error = ""
		return nil
	})
}

// FailChapter transitions a chapter to failed with the captured error.
func (s *Store) FailChapter(bookID string, index int, cause error) error {
	return s.updateChapter(bookID, index, func(ch *book.Chapter) error {
		if err := transition(ch, book.ChapterFailed); err != nil {
			return err
		}
		if cause != nil {
			ch.Error = cause.Error()
		}
		return nil
	})
}

// RetryChapter starts a fresh attempt for a failed chapter: the failed
// outcome is appended to the chapter's history and the live record resets to
// pending with an incremented attempt counter. Only failed chapters can be
// retried.
func (s *Store) RetryChapter(bookID string, index int) error {
	return s.updateChapter(bookID, index, func(ch *book.Chapter) error {
		if ch.Status != book.ChapterFailed {
			return fmt.Errorf("chapter %d: %w: retry from %s", index, ErrBadTransition, ch.Status)
		}
		ch.History = append(ch.History, book.Attempt{
			Attempt:    ch.Attempt,
			Status:     ch.Status,
			Error:      ch.Error,
			FinishedAt: time.Now().UTC(),
		})
		ch.Attempt++
		ch.Status = book.ChapterPending
		ch.Error = ""
		ch.AudioFile = ""
		return nil
	})
}

// ReclaimChapter returns a chapter stuck in processing to pending. Used when
// resuming a run that crashed or was cancelled mid-chapter: the interrupted
// attempt never finished, so the attempt counter does not advance and no
// history entry is recorded.
func (s *Store) ReclaimChapter(bookID string, index int) error {
	return s.updateChapter(bookID, index, func(ch *book.Chapter) error {
		if ch.Status != book.ChapterProcessing {
			return fmt.Errorf("chapter %d: %w: reclaim from %s", index, ErrBadTransition, ch.Status)
		}
		ch.Status = book.ChapterPending
		return nil
	})
}

// Delete removes all persisted state for a book.
func (s *Store) Delete(bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.home.RemoveBook(bookID)
}

// Books returns the ids of all books with a manifest, sorted.
func (s *Store) Books() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.home.BooksPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read books directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(s.home.ManifestPath(entry.Name())); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// updateChapter performs one atomic read-modify-write against a chapter.
func (s *Store) updateChapter(bookID string, index int, fn func(*book.Chapter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(bookID)
	if err != nil {
		return err
	}

	ch := m.Chapter(index)
	if ch == nil {
		return fmt.Errorf("book %s has no chapter %d: %w", bookID, index, ErrNotFound)
	}
	if err := fn(ch); err != nil {
		return err
	}
	return s.write(m)
}

func (s *Store) load(bookID string) (*Manifest, error) {
	data, err := os.ReadFile(s.home.ManifestPath(bookID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	if err := validateDocument(data); err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, err)
	}
	return &m, nil
}

// write marshals and atomically replaces the manifest file.
func (s *Store) write(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')

	path := s.home.ManifestPath(m.Book.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// transition applies a validated forward status change.
func transition(ch *book.Chapter, next book.ChapterStatus) error {
	if !ch.Status.CanTransitionTo(next) {
		return fmt.Errorf("chapter %d: %w: %s -> %s", ch.Index, ErrBadTransition, ch.Status, next)
	}
	ch.Status = next
	return nil
}

// validateManifest enforces the structural invariants the rest of the
// pipeline relies on: contiguous 0-based chapter indices and a matching
// chapter count.
func validateManifest(m *Manifest) error {
	if m.Book.ID == "" {
		return errors.New("manifest missing book id")
	}
	if m.Book.TotalChapters != len(m.Chapters) {
		return fmt.Errorf("total_chapters %d does not match %d chapters",
			m.Book.TotalChapters, len(m.Chapters))
	}
	for i := range m.Chapters {
		if m.Chapters[i].Index != i {
			return fmt.Errorf("chapter indices not contiguous: position %d has index %d",
				i, m.Chapters[i].Index)
		}
		if m.Chapters[i].Attempt < 1 {
			return fmt.Errorf("chapter %d has attempt %d, want >= 1", i, m.Chapters[i].Attempt)
		}
	}
	return nil
}
