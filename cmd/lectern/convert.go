package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lecternaudio/lectern/internal/book"
	"github.com/lecternaudio/lectern/internal/config"
	"github.com/lecternaudio/lectern/internal/convert"
	"github.com/lecternaudio/lectern/internal/home"
	"github.com/lecternaudio/lectern/internal/manifest"
	"github.com/lecternaudio/lectern/internal/synth"
)

var (
	convertVoice      string
	convertEngine     string
	convertWorkers    int
	convertMaxMinutes int
	convertMaxChars   int
	convertTimeout    int
	convertSilence    float64
	convertOutput     string
	convertTitle      string
	convertAuthor     string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a book into a chaptered audiobook",
	Long: `Convert a PDF, EPUB, or plain text book into a chaptered audiobook.

The book is split into chapters, each chapter is synthesized with the
configured TTS engine, and the finished audio is packaged into a ZIP
archive together with the manifest and a README.

A book that was already split (same content, same id) resumes instead of
starting over: completed chapters are kept, pending ones are synthesized.
Press Ctrl-C to cancel; the chapter currently synthesizing finishes and
the book can be resumed later.

Examples:
  lectern convert book.epub
  lectern convert book.pdf --voice en_US-lessac-medium --workers 4
  lectern convert book.txt --engine openai --output ~/audiobook.zip`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}
		cfg, err := getConfig(h)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		store := getStore(h, logger)

		if convertEngine != "" {
			cfg.Synthesis.Engine = convertEngine
		}
		if convertVoice != "" {
			cfg.Synthesis.Voice = convertVoice
		}
		if convertWorkers > 0 {
			cfg.Synthesis.Workers = convertWorkers
		}
		if convertMaxMinutes > 0 {
			cfg.Chapters.MaxMinutes = convertMaxMinutes
		}
		if convertMaxChars > 0 {
			cfg.Chunking.MaxChars = convertMaxChars
		}
		if convertTimeout > 0 {
			cfg.Synthesis.ChunkTimeoutSeconds = convertTimeout
		}
		if cmd.Flags().Changed("silence") {
			cfg.Audio.SilenceSeconds = convertSilence
		}

		m, err := splitOrResume(cmd, h, store, cfg, args[0])
		if err != nil {
			return err
		}

		engine, err := synth.FromConfig(cfg, h, logger)
		if err != nil {
			return err
		}
		if hc, ok := engine.(synth.HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				return fmt.Errorf("engine %s is not ready: %w", engine.Name(), err)
			}
		}

		sink := convert.SinkFunc(func(e convert.Event) {
			if e.CurrentChapter != nil && !e.Status.Terminal() {
				fmt.Printf("  chapter %d done (%d/%d completed)\n",
					*e.CurrentChapter+1, e.ChaptersCompleted, e.TotalChapters)
			}
		})

		runner := convert.NewRunner(h, store, engine, convert.Options{
			Workers:      cfg.Synthesis.Workers,
			MaxChars:     cfg.Chunking.MaxChars,
			ChunkTimeout: time.Duration(cfg.Synthesis.ChunkTimeoutSeconds) * time.Second,
			Silence:      cfg.Audio.SilenceSeconds,
			Voice:        cfg.Synthesis.Voice,
			Params:       synth.ParamsFromConfig(cfg.Synthesis),
		}, sink, logger)

		fmt.Printf("Converting %q (%d chapters, engine %s)...\n",
			m.Book.Title, m.Book.TotalChapters, engine.Name())

		job, err := runner.Run(ctx, m.Book.ID)
		if err != nil {
			return err
		}

		switch job.Status {
		case book.JobCompleted:
			fmt.Printf("Done: %d/%d chapters completed\n", job.ChaptersCompleted, job.TotalChapters)
			if convertOutput != "" && job.OutputArchive != "" {
				if err := copyFile(job.OutputArchive, convertOutput); err != nil {
					return fmt.Errorf("failed to copy archive: %w", err)
				}
				fmt.Printf("Archive: %s\n", convertOutput)
			} else if job.OutputArchive != "" {
				fmt.Printf("Archive: %s\n", job.OutputArchive)
			}
		case book.JobCancelled:
			fmt.Printf("Cancelled: %d/%d chapters completed, run again to resume\n",
				job.ChaptersCompleted, job.TotalChapters)
		default:
			return fmt.Errorf("conversion failed: %s", job.Error)
		}
		return nil
	},
}

// splitOrResume reuses an existing manifest for the same content when
// present, so conversion resumes rather than restarting. With timestamped
// ids every invocation gets a fresh book and always splits.
func splitOrResume(cmd *cobra.Command, h *home.Dir, store *manifest.Store, cfg *config.Config, path string) (*manifest.Manifest, error) {
	logger := newLogger(cfg)

	if !cfg.Books.TimestampIDs {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		id := book.NewID(content, false)
		if m, err := store.Load(id); err == nil {
			fmt.Printf("Resuming book %s (%d/%d chapters completed)\n",
				id, m.CompletedCount(), m.Book.TotalChapters)
			return m, nil
		} else if !errors.Is(err, manifest.ErrNotFound) {
			return nil, err
		}
	}

	return convert.Split(cmd.Context(), h, store, path, convert.SplitOptions{
		MaxChapterMinutes: cfg.Chapters.MaxMinutes,
		TimestampIDs:      cfg.Books.TimestampIDs,
		Title:             convertTitle,
		Author:            convertAuthor,
	}, logger)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func init() {
	convertCmd.Flags().StringVar(&convertVoice, "voice", "", "voice model name")
	convertCmd.Flags().StringVar(&convertEngine, "engine", "", "synthesis engine: piper, http, or openai")
	convertCmd.Flags().IntVar(&convertWorkers, "workers", 0, "concurrent chapters (max 4)")
	convertCmd.Flags().IntVar(&convertMaxMinutes, "max-chapter-minutes", 0, "split chapters longer than this estimated duration")
	convertCmd.Flags().IntVar(&convertMaxChars, "max-chars", 0, "character budget per synthesis call")
	convertCmd.Flags().IntVar(&convertTimeout, "timeout", 0, "per-chunk synthesis timeout in seconds")
	convertCmd.Flags().Float64Var(&convertSilence, "silence", 0, "seconds of silence between chunks")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "copy the finished archive to this path")
	convertCmd.Flags().StringVar(&convertTitle, "title", "", "override the book title")
	convertCmd.Flags().StringVar(&convertAuthor, "author", "", "override the book author")

	rootCmd.AddCommand(convertCmd)
}
