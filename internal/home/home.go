package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the lectern home directory.
	DefaultDirName = ".lectern"

	// BooksDirName is the subdirectory holding per-book state.
	BooksDirName = "books"

	// VoicesDirName is the subdirectory holding voice model files.
	VoicesDirName = "voices"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the lectern home directory structure.
//
// Layout:
//
//	~/.lectern/
//	  config.yaml
//	  voices/                          voice models (mounted into the engine container)
//	  books/<book_id>/
//	    source.<ext>                   original document
//	    manifest.json                  durable pipeline state
//	    text/chapter_0001.txt          cleaned chapter text
//	    audio/chapter_0001/            per-chunk segments for one chapter
//	    audio/<chapter filename>.wav   assembled chapter audio
//	    audiobook.zip                  final archive
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.lectern).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// BooksPath returns the path to the books directory.
func (d *Dir) BooksPath() string {
	return filepath.Join(d.path, BooksDirName)
}

// VoicesPath returns the path to the voice models directory.
func (d *Dir) VoicesPath() string {
	return filepath.Join(d.path, VoicesDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.BooksPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create books directory: %w", err)
	}
	if err := os.MkdirAll(d.VoicesPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create voices directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// BookDir returns the state directory for a book.
func (d *Dir) BookDir(bookID string) string {
	return filepath.Join(d.BooksPath(), bookID)
}

// EnsureBookDir creates the state directory for a book.
func (d *Dir) EnsureBookDir(bookID string) error {
	return os.MkdirAll(d.BookDir(bookID), 0o755)
}

// SourcePath returns the path where a book's original document is kept.
// ext is the extension without a leading dot ("pdf", "epub", "txt").
func (d *Dir) SourcePath(bookID, ext string) string {
	return filepath.Join(d.BookDir(bookID), "source."+ext)
}

// ManifestPath returns the path to a book's manifest file.
func (d *Dir) ManifestPath(bookID string) string {
	return filepath.Join(d.BookDir(bookID), "manifest.json")
}

// TextDir returns the directory for a book's cleaned chapter text.
func (d *Dir) TextDir(bookID string) string {
	return filepath.Join(d.BookDir(bookID), "text")
}

// ChapterTextPath returns the path for one chapter's cleaned text.
func (d *Dir) ChapterTextPath(bookID string, chapterIdx int) string {
	return filepath.Join(d.TextDir(bookID), fmt.Sprintf("chapter_%04d.txt", chapterIdx))
}

// EnsureTextDir creates the text directory for a book.
func (d *Dir) EnsureTextDir(bookID string) error {
	return os.MkdirAll(d.TextDir(bookID), 0o755)
}

// AudioDir returns the directory for a book's audio output.
func (d *Dir) AudioDir(bookID string) string {
	return filepath.Join(d.BookDir(bookID), "audio")
}

// ChapterChunkDir returns the directory for a chapter's synthesized chunk segments.
func (d *Dir) ChapterChunkDir(bookID string, chapterIdx int) string {
	return filepath.Join(d.AudioDir(bookID), fmt.Sprintf("chapter_%04d", chapterIdx))
}

// ChunkAudioPath returns the path for one synthesized chunk within a chapter.
func (d *Dir) ChunkAudioPath(bookID string, chapterIdx, chunkIdx int) string {
	return filepath.Join(
		d.ChapterChunkDir(bookID, chapterIdx),
		fmt.Sprintf("chunk_%04d.wav", chunkIdx),
	)
}

// ChapterAudioPath returns the path for an assembled chapter audio file.
// filename is the derived chapter base name without extension.
func (d *Dir) ChapterAudioPath(bookID, filename string) string {
	return filepath.Join(d.AudioDir(bookID), filename+".wav")
}

// ArchivePath returns the path for a book's final archive.
func (d *Dir) ArchivePath(bookID string) string {
	return filepath.Join(d.BookDir(bookID), "audiobook.zip")
}

// EnsureAudioDir creates the audio directory for a book.
func (d *Dir) EnsureAudioDir(bookID string) error {
	return os.MkdirAll(d.AudioDir(bookID), 0o755)
}

// EnsureChapterChunkDir creates the chunk directory for a chapter.
func (d *Dir) EnsureChapterChunkDir(bookID string, chapterIdx int) error {
	return os.MkdirAll(d.ChapterChunkDir(bookID, chapterIdx), 0o755)
}

// RemoveBook deletes all persisted state for a book.
func (d *Dir) RemoveBook(bookID string) error {
	return os.RemoveAll(d.BookDir(bookID))
}
