package codec

import (
	"context"
	"math"

	"github.com/narravox/narravox/internal/frame"
)

// SamplesPerFrame is the waveform length of one codec time-step in the mock.
const SamplesPerFrame = 512

type mockDecoder struct {
	amplitude float64
}

// NewMockDecoder returns a decoder that synthesizes a low-amplitude tone
// proportional in length to the frame count. Output is deterministic.
func NewMockDecoder() Decoder {
	return &mockDecoder{amplitude: 0.1}
}

// NewSilentMockDecoder returns a decoder producing all-zero samples, used to
// exercise silence detection.
func NewSilentMockDecoder() Decoder {
	return &mockDecoder{amplitude: 0}
}

func (m *mockDecoder) Decode(ctx context.Context, codes frame.Codes) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := codes.Frames() * SamplesPerFrame
	samples := make([]float32, n)
	if m.amplitude == 0 {
		return samples, nil
	}
	for i := range samples {
		samples[i] = float32(m.amplitude * math.Sin(2*math.Pi*float64(i)/128))
	}
	return samples, nil
}

func (m *mockDecoder) Close() error { return nil }
