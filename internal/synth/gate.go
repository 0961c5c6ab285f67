package synth

import (
	"context"
	"hash/fnv"
	"log/slog"

	"github.com/narravox/narravox/internal/codec"
	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/frame"
	"github.com/narravox/narravox/internal/model"
	"github.com/narravox/narravox/internal/text"
)

const seedMask = 0x7FFFFFFF // seeds stay in [0, 2^31)

// Gate wraps a single chunk's generation with decode, cleanup, and a
// silence-gated retry loop. Hard backend faults propagate immediately; only
// silent output is retried, each attempt with the next derived seed.
type Gate struct {
	cfg     config.SynthesisConfig
	decoder codec.Decoder
	logger  *slog.Logger
}

func NewGate(cfg config.SynthesisConfig, decoder codec.Decoder, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:     cfg,
		decoder: decoder,
		logger:  logger.With(slog.String("component", "quality-gate")),
	}
}

// BaseSeed derives a deterministic seed from the voice descriptor and chunk
// text so repeated runs of identical input reproduce.
func BaseSeed(voice, chunkText string) int64 {
	h := fnv.New64a()
	h.Write([]byte(voice))
	h.Write([]byte{'\n'})
	h.Write([]byte(chunkText))
	return int64(h.Sum64()) & seedMask
}

// Synthesize runs up to MaxAttempts generation attempts for one chunk and
// returns the first non-silent clip.
func (g *Gate) Synthesize(ctx context.Context, gen GenerateFunc, markers frame.Markers, chunk text.Chunk, voice string, sampling config.SamplingConfig) (Clip, error) {
	base := BaseSeed(voice, chunk.Text)
	opts := frame.Options{PadPartial: g.cfg.PadPartial}

	var lastRMS float64
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		seed := (base + int64(attempt)) & seedMask

		tokens, err := gen(ctx, model.Request{
			Text:     chunk.Text,
			Voice:    voice,
			Seed:     seed,
			Sampling: sampling,
		})
		if err != nil {
			return Clip{}, err
		}

		codes, err := frame.Decode(tokens, markers, opts)
		if err != nil {
			return Clip{}, err
		}

		samples, err := g.decoder.Decode(ctx, codes)
		if err != nil {
			return Clip{}, err
		}
		samples = Cleanup(samples, g.cfg.TrimSamples, g.cfg.FadeSamples)

		lastRMS = RMS(samples)
		if lastRMS >= g.cfg.SilenceRMS {
			return Clip{Index: chunk.Index, Samples: samples, SampleRate: g.cfg.SampleRate}, nil
		}

		g.logger.Warn("silent attempt, retrying with next seed",
			slog.Int("chunk", chunk.Index),
			slog.Int("attempt", attempt),
			slog.Float64("rms", lastRMS))
	}

	return Clip{}, &QualityError{ChunkIndex: chunk.Index, Attempts: g.cfg.MaxAttempts, LastRMS: lastRMS}
}
