package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type mockExtractor struct{}

// NewMockExtractor reads the source as plain UTF-8 text. Lines starting with
// "# " open a new chapter; text before the first heading becomes a single
// chapter named after the file.
func NewMockExtractor() Extractor {
	return &mockExtractor{}
}

func (m *mockExtractor) Extract(_ context.Context, path string) (Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Book{}, fmt.Errorf("read source document: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	book := Book{Metadata: Metadata{Title: stem}}

	current := ChapterText{Title: stem}
	flush := func() {
		current.Text = strings.TrimSpace(current.Text)
		if current.Text != "" {
			book.Chapters = append(book.Chapters, current)
		}
	}

	for _, line := range strings.Split(string(data), "\n") {
		if title, ok := strings.CutPrefix(line, "# "); ok {
			flush()
			current = ChapterText{Title: strings.TrimSpace(title)}
			continue
		}
		current.Text += line + "\n"
	}
	flush()

	if len(book.Chapters) == 0 {
		return Book{}, fmt.Errorf("source document %s has no text", path)
	}
	return book, nil
}
