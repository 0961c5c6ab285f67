// Package pipeline drives a whole book through segmentation, synthesis and
// assembly, and is the caller-facing entry point for both the CLI and the
// bus service.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/narravox/narravox/internal/assemble"
	"github.com/narravox/narravox/internal/codec"
	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/extract"
	"github.com/narravox/narravox/internal/library"
	"github.com/narravox/narravox/internal/model"
	"github.com/narravox/narravox/internal/synth"
	"github.com/narravox/narravox/internal/text"
	"github.com/narravox/narravox/internal/voice"
)

// ProgressFunc reports pipeline progress after every chunk.
type ProgressFunc func(done, total int, chapter string)

// Options selects per-run parameters on top of the configured defaults.
type Options struct {
	JobID     string
	Voice     string // preset name or literal voice prompt
	Format    string // wav or m4b, empty for configured default
	OutputDir string
	BaseName  string
	Metadata  assemble.Metadata
	Progress  ProgressFunc
}

// Manifest is the write-once record of a finished (or cancelled) run.
type Manifest struct {
	JobID        string
	MergedPath   string
	ChapterPaths []string
	Chapters     []assemble.Chapter
	Duration     float64
	Cancelled    bool
}

// Pipeline wires the synthesis stages together.
type Pipeline struct {
	cfg     config.Config
	backend model.Backend
	decoder codec.Decoder
	store   *library.Store
	logger  *slog.Logger
}

func New(cfg config.Config, backend model.Backend, decoder codec.Decoder, store *library.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		backend: backend,
		decoder: decoder,
		store:   store,
		logger:  logger.With(slog.String("component", "pipeline")),
	}
}

// Run synthesizes every chapter of the book. Cancellation is a terminal
// state, not an error: the manifest then covers the chapters finished before
// the stop was observed and Cancelled is set. A chapter whose synthesis was
// cut short is left out of the output entirely so the container never holds
// audio with missing chunks.
func (p *Pipeline) Run(ctx context.Context, book extract.Book, opts Options) (Manifest, error) {
	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	voiceName := opts.Voice
	if voiceName == "" {
		voiceName = p.cfg.Model.Voice
	}
	voicePrompt := voice.Describe(voiceName)
	format := opts.Format
	if format == "" {
		format = p.cfg.Assembly.Format
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = p.cfg.Assembly.OutputDir
	}
	baseName := opts.BaseName
	if baseName == "" {
		baseName = assemble.SanitizeChapterName(book.Metadata.Title)
	}
	meta := opts.Metadata
	if meta.Title == "" {
		meta.Title = book.Metadata.Title
	}
	if meta.Artist == "" {
		meta.Artist = book.Metadata.Author
	}
	if meta.Year == "" {
		meta.Year = book.Metadata.Year
	}
	if meta.Genre == "" {
		meta.Genre = book.Metadata.Genre
	}
	if meta.Description == "" {
		meta.Description = book.Metadata.Description
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create output dir: %w", err)
	}

	if err := p.store.CreateJob(ctx, library.Job{
		ID:    jobID,
		Title: book.Metadata.Title,
		Voice: voiceName,
	}); err != nil {
		return Manifest{}, fmt.Errorf("record job: %w", err)
	}

	manifest, err := p.run(ctx, book, jobID, voicePrompt, format, outputDir, baseName, meta, opts.Progress)
	p.finish(jobID, manifest, err)
	return manifest, err
}

func (p *Pipeline) run(ctx context.Context, book extract.Book, jobID, voicePrompt, format, outputDir, baseName string, meta assemble.Metadata, progress ProgressFunc) (Manifest, error) {
	limits := text.Limits{MaxWords: p.cfg.Chunking.MaxWords, MaxChars: p.cfg.Chunking.MaxChars}

	type chapterPlan struct {
		title  string
		chunks []text.Chunk
	}
	var plans []chapterPlan
	total := 0
	for _, ch := range book.Chapters {
		chunks := text.Segment(ch.Text, limits)
		if len(chunks) == 0 {
			p.logger.Warn("skipping empty chapter", slog.String("chapter", ch.Title))
			continue
		}
		plans = append(plans, chapterPlan{title: ch.Title, chunks: chunks})
		total += len(chunks)
	}
	if total == 0 {
		return Manifest{JobID: jobID}, fmt.Errorf("book has no synthesizable text")
	}

	var (
		err        error
		mergedPath string
		sink       assemble.Sink = nopSink{}
	)
	if p.cfg.Assembly.MergeChapters {
		ext := "." + format
		mergedPath, err = assemble.UniquePath(filepath.Join(outputDir, baseName), ext)
		if err != nil {
			return Manifest{JobID: jobID}, err
		}
		sink, err = p.newSink(ctx, format, mergedPath, meta)
		if err != nil {
			return Manifest{JobID: jobID}, err
		}
	}
	sinkOpen := true
	defer func() {
		if sinkOpen {
			sink.Close()
		}
	}()

	rate := p.cfg.Synthesis.SampleRate
	asm := assemble.NewAssembler(sink, rate, p.cfg.Assembly.ChunkGapSec, p.cfg.Assembly.ChapterGapSec, p.logger)
	gate := synth.NewGate(p.cfg.Synthesis, p.decoder, p.logger)
	orch := synth.NewOrchestrator(p.cfg.Synthesis, p.backend, gate, p.logger)

	manifest := Manifest{JobID: jobID, MergedPath: mergedPath}
	done := 0
	for i, plan := range plans {
		// Chapter boundaries are the coarse cancellation points.
		if ctx.Err() != nil {
			manifest.Cancelled = true
			break
		}
		p.logger.Info("synthesizing chapter",
			slog.String("job", jobID),
			slog.String("chapter", plan.title),
			slog.Int("chunks", len(plan.chunks)))

		chapterProgress := func(chapterDone, _ int) {
			if progress != nil {
				progress(done+chapterDone, total, plan.title)
			}
		}
		res, err := orch.Run(ctx, plan.chunks, voicePrompt, p.cfg.Model.Sampling, chapterProgress)
		if err != nil {
			return manifest, fmt.Errorf("chapter %q: %w", plan.title, err)
		}
		done += len(plan.chunks)
		if res.Cancelled {
			manifest.Cancelled = true
			break
		}

		chapter, err := asm.WriteChapter(plan.title, res.Clips)
		if err != nil {
			return manifest, fmt.Errorf("chapter %q: %w", plan.title, err)
		}
		manifest.Chapters = append(manifest.Chapters, chapter)

		if p.cfg.Assembly.SaveChapters {
			path, err := p.writeChapterFile(outputDir, i, plan.title, res.Clips)
			if err != nil {
				return manifest, err
			}
			manifest.ChapterPaths = append(manifest.ChapterPaths, path)
		}
	}

	sinkOpen = false
	if err := sink.Close(); err != nil && !manifest.Cancelled {
		return manifest, err
	}
	manifest.Duration = asm.Elapsed()

	if format == "m4b" && mergedPath != "" && !manifest.Cancelled && len(manifest.Chapters) > 0 {
		if err := assemble.EmbedChapters(ctx, p.cfg.Assembly.MuxCommand, mergedPath, manifest.Chapters, meta); err != nil {
			return manifest, err
		}
	}
	return manifest, nil
}

// writeChapterFile saves one chapter as a standalone WAV next to the merged
// output.
func (p *Pipeline) writeChapterFile(outputDir string, index int, title string, clips []synth.Clip) (string, error) {
	path := filepath.Join(outputDir, assemble.ChapterFileName(index, title, ".wav"))
	sink, err := assemble.NewWAVSink(path, p.cfg.Synthesis.SampleRate)
	if err != nil {
		return "", err
	}
	asm := assemble.NewAssembler(sink, p.cfg.Synthesis.SampleRate, p.cfg.Assembly.ChunkGapSec, 0, p.logger)
	if _, err := asm.WriteChapter(title, clips); err != nil {
		sink.Close()
		os.Remove(path)
		return "", err
	}
	if err := sink.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// nopSink backs chapters-only runs where no merged container is wanted.
type nopSink struct{}

func (nopSink) Write([]float32) error { return nil }
func (nopSink) Close() error          { return nil }

func (p *Pipeline) newSink(ctx context.Context, format, path string, meta assemble.Metadata) (assemble.Sink, error) {
	switch format {
	case "wav":
		return assemble.NewWAVSink(path, p.cfg.Synthesis.SampleRate)
	case "m4b":
		return assemble.NewMuxSink(ctx, p.cfg.Assembly.MuxCommand, path, p.cfg.Synthesis.SampleRate, meta)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

func (p *Pipeline) finish(jobID string, manifest Manifest, runErr error) {
	ctx := context.Background()
	status := library.StatusCompleted
	errMsg := ""
	switch {
	case runErr != nil:
		status = library.StatusFailed
		errMsg = runErr.Error()
	case manifest.Cancelled:
		status = library.StatusCancelled
	}

	records := make([]library.ChapterRecord, len(manifest.Chapters))
	for i, ch := range manifest.Chapters {
		records[i] = library.ChapterRecord{Index: i, Title: ch.Title, Start: ch.Start, End: ch.End}
		if i < len(manifest.ChapterPaths) {
			records[i].Path = manifest.ChapterPaths[i]
		}
	}
	if err := p.store.SaveChapters(ctx, jobID, records); err != nil {
		p.logger.Warn("failed to save chapter manifest", slogError(err))
	}
	if err := p.store.FinishJob(ctx, jobID, status, errMsg, manifest.MergedPath); err != nil {
		p.logger.Warn("failed to finish job record", slogError(err))
	}
	p.logger.Info("job finished",
		slog.String("job", jobID),
		slog.String("status", status),
		slog.Float64("duration_sec", manifest.Duration))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
