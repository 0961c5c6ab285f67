// Package extract abstracts the upstream document reader that turns a source
// file into clean chapter text plus book metadata. The synthesis pipeline
// treats it as an opaque producer.
package extract

import (
	"context"
	"fmt"

	"github.com/narravox/narravox/internal/config"
)

// Metadata is the book-level information recovered from the source document.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Year        string `json:"year,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Description string `json:"description,omitempty"`
}

// ChapterText is one chapter's title and full prose.
type ChapterText struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Book is the extractor's complete output for one document.
type Book struct {
	Metadata Metadata      `json:"metadata"`
	Chapters []ChapterText `json:"chapters"`
}

// Extractor abstracts document extraction backends.
type Extractor interface {
	Extract(ctx context.Context, path string) (Book, error)
}

// New selects the extractor implementation for the configured mode.
func New(cfg config.ExtractConfig) (Extractor, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockExtractor(), nil
	case "exec":
		return NewExecExtractor(cfg)
	default:
		return nil, fmt.Errorf("unsupported extract mode %q", cfg.Mode)
	}
}
