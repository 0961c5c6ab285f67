package assemble

import (
	"log/slog"

	"github.com/narravox/narravox/internal/synth"
)

// silenceBlock bounds how much silence is materialized per sink write.
const silenceBlock = 4096

// Assembler streams clips to a sink in chunk order, inserting the configured
// silence between chunks and between chapters, and records chapter timing as
// it goes. It owns the running timeline; callers feed it one chapter's clips
// at a time.
type Assembler struct {
	sink       Sink
	sampleRate int
	chunkGap   float64
	chapterGap float64
	logger     *slog.Logger

	elapsed  float64
	chapters []Chapter
	silence  []float32
}

func NewAssembler(sink Sink, sampleRate int, chunkGap, chapterGap float64, logger *slog.Logger) *Assembler {
	return &Assembler{
		sink:       sink,
		sampleRate: sampleRate,
		chunkGap:   chunkGap,
		chapterGap: chapterGap,
		logger:     logger.With(slog.String("component", "assembler")),
		silence:    make([]float32, silenceBlock),
	}
}

// WriteChapter streams one chapter's clips and returns its timing record.
// The chapter gap is written before every chapter after the first; it sits
// on the timeline between the previous End and this Start.
func (a *Assembler) WriteChapter(title string, clips []synth.Clip) (Chapter, error) {
	if len(a.chapters) > 0 {
		if err := a.writeSilence(a.chapterGap); err != nil {
			return Chapter{}, err
		}
	}
	start := a.elapsed
	for i, clip := range clips {
		if i > 0 {
			if err := a.writeSilence(a.chunkGap); err != nil {
				return Chapter{}, err
			}
		}
		if err := a.sink.Write(clip.Samples); err != nil {
			return Chapter{}, err
		}
		a.elapsed += clip.Duration()
	}
	chapter := Chapter{Title: title, Start: start, End: a.elapsed}
	a.chapters = append(a.chapters, chapter)
	a.logger.Debug("chapter written",
		slog.String("title", title),
		slog.Float64("start", chapter.Start),
		slog.Float64("end", chapter.End),
		slog.Int("clips", len(clips)))
	return chapter, nil
}

func (a *Assembler) writeSilence(seconds float64) error {
	remaining := int(seconds * float64(a.sampleRate))
	for remaining > 0 {
		n := remaining
		if n > len(a.silence) {
			n = len(a.silence)
		}
		if err := a.sink.Write(a.silence[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	a.elapsed += seconds
	return nil
}

// Chapters returns the timing records written so far.
func (a *Assembler) Chapters() []Chapter { return a.chapters }

// Elapsed returns the current timeline position in seconds.
func (a *Assembler) Elapsed() float64 { return a.elapsed }
