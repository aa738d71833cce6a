package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lecternaudio/lectern/internal/book"
)

// Text extracts plain text files as a single unit. Chapter structure, if
// any, is recovered later by heading detection.
type Text struct{}

// NewText returns a plain text extractor.
func NewText() *Text {
	return &Text{}
}

func (t *Text) Extract(_ context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Format: book.FormatTXT, Path: path, Err: err}
	}
	body := string(bytes.TrimPrefix(data, []byte{0xef, 0xbb, 0xbf}))
	if strings.TrimSpace(body) == "" {
		return nil, &Error{Format: book.FormatTXT, Path: path, Err: fmt.Errorf("file contains no text")}
	}

	return &Document{
		Format:        book.FormatTXT,
		Units:         []Unit{{Index: 0, Label: filepath.Base(path), Text: body}},
		UnitSeparator: "\n\n",
	}, nil
}
