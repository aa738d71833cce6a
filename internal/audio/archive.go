package audio

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoChapters is returned when an archive is requested for a book with no
// completed chapters.
var ErrNoChapters = errors.New("no completed chapters to archive")

// ArchiveChapter is one chapter entry for the final archive.
type ArchiveChapter struct {
	Index     int
	Title     string
	AudioPath string // on-disk WAV, empty unless completed
	Duration  time.Duration
	Completed bool
}

// ArchiveInfo describes the audiobook being packaged.
type ArchiveInfo struct {
	Title    string
	Author   string
	Engine   string
	Voice    string
	Chapters []ArchiveChapter
	Manifest []byte // manifest.json payload embedded alongside the audio
}

// WriteArchive packages completed chapter audio, the manifest, and a README
// into a ZIP at path. Fails with ErrNoChapters when nothing completed.
func WriteArchive(path string, info ArchiveInfo) error {
	completed := 0
	for _, ch := range info.Chapters {
		if ch.Completed {
			completed++
		}
	}
	if completed == 0 {
		return ErrNoChapters
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	zw := zip.NewWriter(f)
	if err := writeArchiveContents(zw, info); err != nil {
		zw.Close()
		f.Close()
		os.Remove(path)
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("close archive: %w", err)
	}
	return f.Close()
}

func writeArchiveContents(zw *zip.Writer, info ArchiveInfo) error {
	for _, ch := range info.Chapters {
		if !ch.Completed || ch.AudioPath == "" {
			continue
		}
		if err := addFile(zw, ch.AudioPath, filepath.Base(ch.AudioPath)); err != nil {
			return fmt.Errorf("add chapter %d audio: %w", ch.Index, err)
		}
	}

	if len(info.Manifest) > 0 {
		w, err := zw.Create("manifest.json")
		if err != nil {
			return fmt.Errorf("add manifest: %w", err)
		}
		if _, err := w.Write(info.Manifest); err != nil {
			return fmt.Errorf("add manifest: %w", err)
		}
	}

	w, err := zw.Create("README.txt")
	if err != nil {
		return fmt.Errorf("add readme: %w", err)
	}
	if _, err := io.WriteString(w, buildReadme(info, time.Now())); err != nil {
		return fmt.Errorf("add readme: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

// ArchiveName returns the archive file name for a book title.
func ArchiveName(title string) string {
	if title == "" {
		title = "book"
	}
	return strings.ReplaceAll(title, " ", "_") + "_audiobook.zip"
}

func buildReadme(info ArchiveInfo, now time.Time) string {
	author := info.Author
	if author == "" {
		author = "Unknown"
	}

	completed := 0
	for _, ch := range info.Chapters {
		if ch.Completed {
			completed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - Audiobook\n", info.Title)
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Book: %s\n", info.Title)
	fmt.Fprintf(&b, "Author: %s\n", author)
	fmt.Fprintf(&b, "Generated: %s\n", now.Format("2006-01-02 15:04"))
	if info.Engine != "" {
		fmt.Fprintf(&b, "Engine: %s (voice %s)\n", info.Engine, info.Voice)
	}
	fmt.Fprintf(&b, "Chapters: %d/%d\n", completed, len(info.Chapters))
	b.WriteString("Format: WAV\n\n")

	b.WriteString("Chapter List:\n")
	b.WriteString("-------------\n")
	for _, ch := range info.Chapters {
		if !ch.Completed {
			continue
		}
		secs := int(ch.Duration.Round(time.Second).Seconds())
		fmt.Fprintf(&b, "  %3d. %s (%d:%02d) - %s\n",
			ch.Index+1, ch.Title, secs/60, secs%60, filepath.Base(ch.AudioPath))
	}

	if completed < len(info.Chapters) {
		b.WriteString("\nUnavailable (synthesis failed):\n")
		b.WriteString("-------------------------------\n")
		for _, ch := range info.Chapters {
			if ch.Completed {
				continue
			}
			fmt.Fprintf(&b, "  %3d. %s\n", ch.Index+1, ch.Title)
		}
	}

	b.WriteString(`
Notes:
------
- Files are numbered for proper playback order
- Use any audio player that supports playlists
`)
	return b.String()
}
