// Package codec bridges to the neural audio codec that turns hierarchical
// codebook codes into waveform samples. The codec itself is an external
// black box; this package only defines the boundary and its transports.
package codec

import (
	"context"
	"fmt"

	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/frame"
)

// Decoder converts codebook codes into mono float32 samples.
type Decoder interface {
	Decode(ctx context.Context, codes frame.Codes) ([]float32, error)
	Close() error
}

// New selects a decoder implementation from config.
func New(cfg config.CodecConfig) (Decoder, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockDecoder(), nil
	case "exec":
		return NewExecDecoder(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown codec mode %q", cfg.Mode)
	}
}
