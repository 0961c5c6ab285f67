package assemble

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

// WriteChapterMetadata emits the chapters in FFMETADATA1 form with a
// millisecond timebase.
func WriteChapterMetadata(w io.Writer, chapters []Chapter) error {
	if _, err := io.WriteString(w, ";FFMETADATA1\n"); err != nil {
		return err
	}
	for _, ch := range chapters {
		title := strings.ReplaceAll(ch.Title, "=", `\=`)
		_, err := fmt.Fprintf(w, "\n[CHAPTER]\nTIMEBASE=1/1000\nSTART=%d\nEND=%d\ntitle=%s\n",
			int64(ch.Start*1000), int64(ch.End*1000), title)
		if err != nil {
			return err
		}
	}
	return nil
}

// EmbedChapters remuxes the finished container in place with chapter
// metadata. The audio stream is copied, not re-encoded; the muxer only
// accepts chapter marks as a separate metadata input, which is why this is
// a second pass. The temp metadata file and temp output are removed on
// failure and the original file is left untouched.
func EmbedChapters(ctx context.Context, command, path string, chapters []Chapter, meta Metadata) error {
	if len(chapters) == 0 {
		return nil
	}
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return fmt.Errorf("parse mux command: %w", err)
	}
	if len(args) == 0 {
		return fmt.Errorf("mux command is empty")
	}

	metaFile, err := os.CreateTemp(filepath.Dir(path), "chapters_*.txt")
	if err != nil {
		return fmt.Errorf("chapter metadata temp file: %w", err)
	}
	defer os.Remove(metaFile.Name())
	if err := WriteChapterMetadata(metaFile, chapters); err != nil {
		metaFile.Close()
		return fmt.Errorf("write chapter metadata: %w", err)
	}
	if err := metaFile.Close(); err != nil {
		return fmt.Errorf("close chapter metadata: %w", err)
	}

	ext := filepath.Ext(path)
	tmpPath := strings.TrimSuffix(path, ext) + ".tmp" + ext

	args = append(args,
		"-y",
		"-i", path,
		"-i", metaFile.Name(),
		"-map", "0:a",
		"-map_metadata", "1",
		"-map_chapters", "1",
		"-c:a", "copy",
	)
	args = append(args, metadataOptions(meta, "")...)
	args = append(args, tmpPath)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(tmpPath)
		return &ContainerMuxError{Command: command, Stderr: stderr.String(), Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace output with chaptered remux: %w", err)
	}
	return nil
}
