package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/frame"
)

// Request describes one generation call for one text chunk.
type Request struct {
	Text     string
	Voice    string
	Seed     int64
	Sampling config.SamplingConfig
}

// Backend is the contract for a speech-token generation engine.
//
// SingleFlight reports whether the backend holds internal recurrent state
// that must never see two concurrent calls. For such backends the caller
// serializes Generate behind one lock and calls Reset immediately before
// each call; stale state carried across chunks produces corrupted speech.
type Backend interface {
	// Generate produces the raw token stream for one chunk.
	Generate(ctx context.Context, req Request) ([]int, error)
	// Markers reports the control token values and audio band for this model.
	Markers() frame.Markers
	SingleFlight() bool
	// Reset clears any state carried from a previous call. No-op for
	// stateless backends.
	Reset(ctx context.Context) error
	Close() error
}

// New selects a backend implementation from config, the same way service
// modes are selected elsewhere in the runtime.
func New(cfg config.ModelConfig) (Backend, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockBackend(), nil
	case "exec":
		return NewExecBackend(cfg)
	case "server":
		return NewServerBackend(cfg), nil
	default:
		return nil, fmt.Errorf("unknown model mode %q", cfg.Mode)
	}
}

// PromptPayload wraps chunk text and the voice descriptor in the form the
// model was trained on. The worker process adds the surrounding control
// tokens (header-start, BOS, text-eot, header-end, audio-start, code-start)
// from the marker config.
func PromptPayload(voice, text string) string {
	return fmt.Sprintf("<description=%q> %s", strings.TrimSpace(voice), strings.TrimSpace(text))
}

func markersFromConfig(m config.MarkerConfig) frame.Markers {
	return frame.Markers{
		CodeStart:  m.CodeStart,
		CodeEnd:    m.CodeEnd,
		CodeOffset: m.CodeOffset,
		BandMin:    m.BandMin,
		BandMax:    m.BandMax,
	}
}
