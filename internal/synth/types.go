package synth

import (
	"context"
	"fmt"

	"github.com/narravox/narravox/internal/model"
)

// Clip is the decoded, cleaned audio for one text chunk.
type Clip struct {
	Index      int
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// GenerateFunc performs one generation attempt. The orchestrator wraps the
// backend call with single-flight locking and state reset where required.
type GenerateFunc func(ctx context.Context, req model.Request) ([]int, error)

// QualityError reports that every retry attempt produced silence. Silent
// chunks are fatal rather than tolerated because they corrupt chapter timing
// downstream.
type QualityError struct {
	ChunkIndex int
	Attempts   int
	LastRMS    float64
}

func (e *QualityError) Error() string {
	return fmt.Sprintf("chunk %d: all %d attempts below silence threshold (last rms %.6f)",
		e.ChunkIndex, e.Attempts, e.LastRMS)
}

// ChunkError wraps a fatal per-chunk failure with its chunk index so one bad
// chunk is attributable after the pool drains.
type ChunkError struct {
	ChunkIndex int
	Err        error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }
