package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
	"github.com/narravox/narravox/internal/config"
)

type execExtractor struct {
	cmd []string
}

// NewExecExtractor runs an external extraction tool per document. The tool
// receives the source path as --input and prints one JSON Book document on
// stdout.
func NewExecExtractor(cfg config.ExtractConfig) (Extractor, error) {
	args, err := shellwords.NewParser().Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse extract command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("extract command is empty")
	}
	return &execExtractor{cmd: args}, nil
}

func (e *execExtractor) Extract(ctx context.Context, path string) (Book, error) {
	args := append([]string{}, e.cmd[1:]...)
	args = append(args, "--input", path)

	command := exec.CommandContext(ctx, e.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Book{}, fmt.Errorf("extract command failed: %w: %s", err, stderr.String())
	}

	var book Book
	if err := json.Unmarshal(stdout.Bytes(), &book); err != nil {
		return Book{}, fmt.Errorf("decode extract response: %w", err)
	}
	if len(book.Chapters) == 0 {
		return Book{}, fmt.Errorf("extractor returned no chapters for %s", path)
	}
	return book, nil
}
