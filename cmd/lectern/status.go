package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lecternaudio/lectern/internal/book"
)

var statusCmd = &cobra.Command{
	Use:   "status [book_id]",
	Short: "Show conversion state for a book",
	Long: `Show conversion state for a book, or list all books when no id is given.

State comes from the book's manifest, so this works while a conversion is
running in another process and after a crash.

Examples:
  lectern status                # list all books
  lectern status 1a2b3c4d5e6f   # chapter table for one book`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		cfg, err := getConfig(h)
		if err != nil {
			return err
		}
		store := getStore(h, newLogger(cfg))

		if len(args) == 0 {
			ids, err := store.Books()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No books found. Run 'lectern split <file>' first.")
				return nil
			}
			fmt.Printf("  %-14s  %4s  %9s  %s\n", "BOOK ID", "CH", "DONE", "TITLE")
			for _, id := range ids {
				m, err := store.Load(id)
				if err != nil {
					fmt.Printf("  %-14s  (unreadable: %v)\n", id, err)
					continue
				}
				fmt.Printf("  %-14s  %4d  %4d/%-4d  %s\n",
					id, m.Book.TotalChapters, m.CompletedCount(), m.Book.TotalChapters, m.Book.Title)
			}
			return nil
		}

		m, err := store.Load(args[0])
		if err != nil {
			return err
		}
		printBook(m)

		for _, ch := range m.Chapters {
			if ch.Status == book.ChapterFailed && ch.Error != "" {
				fmt.Printf("\n  chapter %d failed: %s\n", ch.Index+1, ch.Error)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
