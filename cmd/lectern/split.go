package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lecternaudio/lectern/internal/convert"
	"github.com/lecternaudio/lectern/internal/manifest"
)

var (
	splitMaxMinutes int
	splitTitle      string
	splitAuthor     string
)

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Split a book into chapters without synthesizing audio",
	Long: `Split a book into chapters and persist the manifest, without audio.

Chapter boundaries come from the book's own table of contents when it has
one, from heading patterns otherwise, and from a plain size split as a
last resort. Chapters longer than the configured maximum spoken duration
are divided into parts. The resulting manifest is what 'lectern convert'
synthesizes from.

Examples:
  lectern split book.epub
  lectern split book.pdf --max-chapter-minutes 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		maxMinutes := cfg.Chapters.MaxMinutes
		if splitMaxMinutes > 0 {
			maxMinutes = splitMaxMinutes
		}

		m, err := convert.Split(cmd.Context(), h, store, args[0], convert.SplitOptions{
			MaxChapterMinutes: maxMinutes,
			TimestampIDs:      cfg.Books.TimestampIDs,
			Title:             splitTitle,
			Author:            splitAuthor,
		}, logger)
		if err != nil {
			return err
		}

		printBook(m)
		return nil
	},
}

// printBook renders the chapter table for a manifest.
func printBook(m *manifest.Manifest) {
	fmt.Printf("Book:     %s\n", m.Book.Title)
	if m.Book.Author != "" {
		fmt.Printf("Author:   %s\n", m.Book.Author)
	}
	fmt.Printf("ID:       %s\n", m.Book.ID)
	fmt.Printf("Format:   %s\n", m.Book.SourceFormat)
	fmt.Printf("Chapters: %d (est. %s)\n\n",
		m.Book.TotalChapters,
		time.Duration(m.Book.EstimatedDurationSecs*float64(time.Second)).Round(time.Second))

	fmt.Printf("  %4s  %-10s  %7s  %8s  %s\n", "#", "STATUS", "WORDS", "EST", "TITLE")
	for _, ch := range m.Chapters {
		est := time.Duration(ch.EstimatedDurationSecs * float64(time.Second)).Round(time.Second)
		fmt.Printf("  %4d  %-10s  %7d  %8s  %s\n",
			ch.Index+1, ch.Status, ch.WordCount, est, ch.Title)
	}
}

func init() {
	splitCmd.Flags().IntVar(&splitMaxMinutes, "max-chapter-minutes", 0, "split chapters longer than this estimated duration")
	splitCmd.Flags().StringVar(&splitTitle, "title", "", "override the book title")
	splitCmd.Flags().StringVar(&splitAuthor, "author", "", "override the book author")

	rootCmd.AddCommand(splitCmd)
}
