package assemble

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
	"github.com/narravox/narravox/internal/synth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// countingSink records how many samples were written.
type countingSink struct {
	samples int
	closed  bool
	failAt  int
}

func (s *countingSink) Write(samples []float32) error {
	if s.failAt > 0 && s.samples+len(samples) >= s.failAt {
		return errors.New("sink write failed")
	}
	s.samples += len(samples)
	return nil
}

func (s *countingSink) Close() error {
	s.closed = true
	return nil
}

func clipOf(seconds float64, rate int) synth.Clip {
	return synth.Clip{Samples: make([]float32, int(seconds*float64(rate))), SampleRate: rate}
}

func TestChapterTiming(t *testing.T) {
	const rate = 24000
	sink := &countingSink{}
	asm := NewAssembler(sink, rate, 0.25, 2.0, testLogger())

	clips := []synth.Clip{clipOf(2.0, rate), clipOf(3.0, rate), clipOf(1.5, rate)}
	ch, err := asm.WriteChapter("Chapter One", clips)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Start != 0 {
		t.Fatalf("first chapter start = %f", ch.Start)
	}
	if math.Abs(ch.End-7.0) > 1e-9 {
		t.Fatalf("chapter end = %f, want 7.0", ch.End)
	}

	ch2, err := asm.WriteChapter("Chapter Two", []synth.Clip{clipOf(1.0, rate)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(ch2.Start-9.0) > 1e-9 {
		t.Fatalf("second chapter start = %f, want end+chapter_gap = 9.0", ch2.Start)
	}
	if math.Abs(ch2.End-10.0) > 1e-9 {
		t.Fatalf("second chapter end = %f, want 10.0", ch2.End)
	}

	wantSamples := int(10.0 * rate)
	if sink.samples != wantSamples {
		t.Fatalf("sink received %d samples, want %d", sink.samples, wantSamples)
	}
	if got := asm.Chapters(); len(got) != 2 {
		t.Fatalf("expected 2 chapter records, got %d", len(got))
	}
}

func TestEmptyChapterHasZeroSpan(t *testing.T) {
	sink := &countingSink{}
	asm := NewAssembler(sink, 24000, 0.25, 2.0, testLogger())
	ch, err := asm.WriteChapter("Empty", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Start != ch.End {
		t.Fatalf("empty chapter should have zero span: %+v", ch)
	}
}

func TestWriteChapterPropagatesSinkError(t *testing.T) {
	sink := &countingSink{failAt: 1}
	asm := NewAssembler(sink, 24000, 0.25, 2.0, testLogger())
	if _, err := asm.WriteChapter("x", []synth.Clip{clipOf(1.0, 24000)}); err == nil {
		t.Fatal("expected sink error to propagate")
	}
}

func TestWAVSinkRoundTrip(t *testing.T) {
	const rate = 24000
	path := filepath.Join(t.TempDir(), "out.wav")
	sink, err := NewWAVSink(path, rate)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	samples := make([]float32, rate) // one second
	for i := range samples {
		samples[i] = 0.25
	}
	if err := sink.Write(samples); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode wav: %v", err)
	}
	if len(buf.Data) != rate {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), rate)
	}
	if buf.Format.SampleRate != rate {
		t.Fatalf("sample rate %d, want %d", buf.Format.SampleRate, rate)
	}
}

func TestWriteChapterMetadataFormat(t *testing.T) {
	var buf bytes.Buffer
	chapters := []Chapter{
		{Title: "Intro", Start: 0, End: 120.5},
		{Title: "A = B", Start: 122.5, End: 130},
	}
	if err := WriteChapterMetadata(&buf, chapters); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, ";FFMETADATA1\n") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "TIMEBASE=1/1000\nSTART=0\nEND=120500\ntitle=Intro\n") {
		t.Fatalf("first chapter malformed: %q", out)
	}
	if !strings.Contains(out, `title=A \= B`) {
		t.Fatalf("equals sign not escaped: %q", out)
	}
	if got := strings.Count(out, "[CHAPTER]"); got != 2 {
		t.Fatalf("expected 2 chapter blocks, got %d", got)
	}
}
