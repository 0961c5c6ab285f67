package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/frame"
	"github.com/narravox/narravox/internal/model"
	"github.com/narravox/narravox/internal/text"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func gateMarkers() frame.Markers {
	return frame.Markers{CodeStart: 3, CodeEnd: 4, CodeOffset: 1000, BandMin: 1000, BandMax: 1999}
}

func gateConfig() config.SynthesisConfig {
	return config.SynthesisConfig{
		Workers:     1,
		MaxAttempts: 3,
		SilenceRMS:  1e-3,
		SampleRate:  24000,
		PadPartial:  true,
	}
}

// scriptedDecoder returns silence until the configured call count is reached.
type scriptedDecoder struct {
	calls       int
	silentCalls int
}

func (d *scriptedDecoder) Decode(_ context.Context, codes frame.Codes) ([]float32, error) {
	d.calls++
	samples := make([]float32, codes.Frames()*64)
	if d.calls > d.silentCalls {
		for i := range samples {
			samples[i] = 0.5
		}
	}
	return samples, nil
}

func (d *scriptedDecoder) Close() error { return nil }

func bandTokens(n int) []int {
	tokens := make([]int, n)
	for i := range tokens {
		tokens[i] = 1000 + i%1000
	}
	return tokens
}

func TestGateRetriesSilenceThenSucceeds(t *testing.T) {
	decoder := &scriptedDecoder{silentCalls: 1}
	gate := NewGate(gateConfig(), decoder, testLogger())

	var calls int
	var seeds []int64
	gen := func(_ context.Context, req model.Request) ([]int, error) {
		calls++
		seeds = append(seeds, req.Seed)
		return bandTokens(14), nil
	}

	chunk := text.Chunk{Index: 0, Text: "hello world."}
	clip, err := gate.Synthesize(context.Background(), gen, gateMarkers(), chunk, "narrator", config.SamplingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 generation calls, got %d", calls)
	}
	if len(clip.Samples) == 0 {
		t.Fatal("expected samples")
	}
	if clip.SampleRate != 24000 {
		t.Fatalf("expected sample rate carried through, got %d", clip.SampleRate)
	}
	if seeds[0] == seeds[1] {
		t.Fatalf("expected distinct seeds per attempt, got %v", seeds)
	}
	base := BaseSeed("narrator", chunk.Text)
	if seeds[0] != (base+1)&seedMask || seeds[1] != (base+2)&seedMask {
		t.Fatalf("expected seeds base+1, base+2; got %v (base %d)", seeds, base)
	}
}

func TestGateAllSilentFails(t *testing.T) {
	decoder := &scriptedDecoder{silentCalls: 100}
	gate := NewGate(gateConfig(), decoder, testLogger())

	var calls int
	gen := func(context.Context, model.Request) ([]int, error) {
		calls++
		return bandTokens(7), nil
	}

	_, err := gate.Synthesize(context.Background(), gen, gateMarkers(), text.Chunk{Index: 5, Text: "x."}, "v", config.SamplingConfig{})
	var qe *QualityError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QualityError, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly max_attempts calls, got %d", calls)
	}
	if qe.Attempts != 3 || qe.ChunkIndex != 5 {
		t.Fatalf("unexpected error detail: %+v", qe)
	}
}

func TestGateBackendFaultNotRetried(t *testing.T) {
	decoder := &scriptedDecoder{}
	gate := NewGate(gateConfig(), decoder, testLogger())

	var calls int
	boom := fmt.Errorf("gpu fell over")
	gen := func(context.Context, model.Request) ([]int, error) {
		calls++
		return nil, boom
	}

	_, err := gate.Synthesize(context.Background(), gen, gateMarkers(), text.Chunk{Text: "x."}, "v", config.SamplingConfig{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected backend error to propagate, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("hard faults must not be retried, got %d calls", calls)
	}
}

func TestGateEmptyTokensFail(t *testing.T) {
	decoder := &scriptedDecoder{}
	gate := NewGate(gateConfig(), decoder, testLogger())

	gen := func(context.Context, model.Request) ([]int, error) {
		return []int{1, 2}, nil // nothing in band
	}
	_, err := gate.Synthesize(context.Background(), gen, gateMarkers(), text.Chunk{Text: "x."}, "v", config.SamplingConfig{})
	if !errors.Is(err, frame.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestBaseSeedDeterministic(t *testing.T) {
	a := BaseSeed("voice", "some text")
	b := BaseSeed("voice", "some text")
	if a != b {
		t.Fatalf("seed not deterministic: %d vs %d", a, b)
	}
	if a < 0 || a > seedMask {
		t.Fatalf("seed out of range: %d", a)
	}
	if BaseSeed("voice", "other text") == a {
		t.Fatal("different text should produce different seed")
	}
}
