package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/narravox/narravox/internal/codec"
	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/extract"
	"github.com/narravox/narravox/internal/library"
	"github.com/narravox/narravox/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Model.Mode = "mock"
	cfg.Codec.Mode = "mock"
	cfg.Assembly.Format = "wav"
	cfg.Assembly.OutputDir = t.TempDir()
	cfg.Synthesis.Workers = 2
	cfg.Library.Path = filepath.Join(t.TempDir(), "library.db")
	return cfg
}

func testPipeline(t *testing.T, cfg config.Config) *Pipeline {
	store, err := library.Open(context.Background(), cfg.Library, testLogger())
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(cfg, model.NewMockBackend(), codec.NewMockDecoder(), store, testLogger())
}

func testBook() extract.Book {
	return extract.Book{
		Metadata: extract.Metadata{Title: "Test Book", Author: "A. Writer"},
		Chapters: []extract.ChapterText{
			{Title: "Chapter One", Text: "The first sentence. The second sentence follows it."},
			{Title: "Chapter Two", Text: "A closing thought."},
		},
	}
}

func TestRunProducesChapteredWAV(t *testing.T) {
	cfg := testConfig(t)
	p := testPipeline(t, cfg)

	var mu sync.Mutex
	var lastDone, lastTotal int
	chapters := make(map[string]bool)
	progress := func(done, total int, chapter string) {
		mu.Lock()
		lastDone, lastTotal = done, total
		chapters[chapter] = true
		mu.Unlock()
	}

	manifest, err := p.Run(context.Background(), testBook(), Options{Progress: progress})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manifest.Cancelled {
		t.Fatal("unexpected cancellation")
	}
	if len(manifest.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(manifest.Chapters))
	}
	if manifest.Chapters[0].Start != 0 {
		t.Fatalf("first chapter start = %f", manifest.Chapters[0].Start)
	}
	if manifest.Chapters[1].Start <= manifest.Chapters[0].End {
		t.Fatal("second chapter must start after first plus chapter gap")
	}
	if manifest.Duration <= 0 {
		t.Fatal("expected nonzero duration")
	}

	info, err := os.Stat(manifest.MergedPath)
	if err != nil {
		t.Fatalf("merged output missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("merged output is empty")
	}
	if filepath.Ext(manifest.MergedPath) != ".wav" {
		t.Fatalf("unexpected extension on %s", manifest.MergedPath)
	}

	mu.Lock()
	defer mu.Unlock()
	if lastDone != lastTotal || lastTotal == 0 {
		t.Fatalf("progress ended at %d/%d", lastDone, lastTotal)
	}
	if !chapters["Chapter One"] || !chapters["Chapter Two"] {
		t.Fatalf("progress missing chapter labels: %v", chapters)
	}
}

func TestRunSavesChapterFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Assembly.SaveChapters = true
	p := testPipeline(t, cfg)

	manifest, err := p.Run(context.Background(), testBook(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifest.ChapterPaths) != 2 {
		t.Fatalf("expected 2 chapter files, got %v", manifest.ChapterPaths)
	}
	for _, path := range manifest.ChapterPaths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("chapter file missing: %v", err)
		}
	}
	if filepath.Base(manifest.ChapterPaths[0]) != "01_Chapter_One.wav" {
		t.Fatalf("unexpected chapter file name %s", manifest.ChapterPaths[0])
	}
}

func TestRunChaptersOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.Assembly.MergeChapters = false
	cfg.Assembly.SaveChapters = true
	p := testPipeline(t, cfg)

	manifest, err := p.Run(context.Background(), testBook(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manifest.MergedPath != "" {
		t.Fatalf("expected no merged output, got %q", manifest.MergedPath)
	}
	if len(manifest.ChapterPaths) != 2 {
		t.Fatalf("expected 2 chapter files, got %v", manifest.ChapterPaths)
	}
}

func TestRunRecordsJobInLibrary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Library.Path = filepath.Join(t.TempDir(), "library.db")
	p := testPipeline(t, cfg)

	manifest, err := p.Run(context.Background(), testBook(), Options{JobID: "job-42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, records, err := p.store.GetJob(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("job not recorded: %v", err)
	}
	if job.Status != library.StatusCompleted {
		t.Fatalf("job status = %q", job.Status)
	}
	if job.MergedPath != manifest.MergedPath {
		t.Fatalf("merged path mismatch: %q vs %q", job.MergedPath, manifest.MergedPath)
	}
	if len(records) != len(manifest.Chapters) {
		t.Fatalf("chapter records = %d, want %d", len(records), len(manifest.Chapters))
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	cfg := testConfig(t)
	p := testPipeline(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	manifest, err := p.Run(ctx, testBook(), Options{})
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if !manifest.Cancelled {
		t.Fatal("expected cancelled manifest")
	}
	if len(manifest.Chapters) != 0 {
		t.Fatalf("expected no chapters, got %d", len(manifest.Chapters))
	}
}

func TestRunEmptyBookFails(t *testing.T) {
	cfg := testConfig(t)
	p := testPipeline(t, cfg)
	book := extract.Book{Metadata: extract.Metadata{Title: "Empty"}}
	if _, err := p.Run(context.Background(), book, Options{}); err == nil {
		t.Fatal("expected error for empty book")
	}
}

func TestRunUniquePathSuffix(t *testing.T) {
	cfg := testConfig(t)
	p := testPipeline(t, cfg)

	first, err := p.Run(context.Background(), testBook(), Options{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Run(context.Background(), testBook(), Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.MergedPath == second.MergedPath {
		t.Fatalf("second run must not overwrite the first: %s", first.MergedPath)
	}
}
