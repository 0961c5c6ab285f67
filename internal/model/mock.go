package model

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/narravox/narravox/internal/frame"
)

// Mock marker values. The band spans the full 7-codebook token range so
// normalization exercises the same arithmetic as a real model.
const (
	mockCodeStart  = 3
	mockCodeEnd    = 4
	mockCodeOffset = 16
	mockBandMin    = 16
	mockBandMax    = mockBandMin + 7*frame.CodebookSize - 1
)

type mockBackend struct{}

// NewMockBackend returns a deterministic backend for tests and dry runs.
// Output depends only on (text, voice, seed), so repeated runs reproduce.
func NewMockBackend() Backend {
	return &mockBackend{}
}

func (m *mockBackend) Generate(ctx context.Context, req Request) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(req.Voice))
	h.Write([]byte{0})
	h.Write([]byte(req.Text))
	rng := rand.New(rand.NewSource(int64(h.Sum64()) ^ req.Seed))

	words := 0
	inWord := false
	for _, r := range req.Text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	frames := 4 + words*3
	if max := req.Sampling.MaxTokens / frame.TokensPerFrame; max > 0 && frames > max {
		frames = max
	}

	tokens := []int{mockCodeStart}
	for i := 0; i < frames*frame.TokensPerFrame; i++ {
		tokens = append(tokens, mockBandMin+rng.Intn(mockBandMax-mockBandMin+1))
	}
	tokens = append(tokens, mockCodeEnd)
	return tokens, nil
}

func (m *mockBackend) Markers() frame.Markers {
	return frame.Markers{
		CodeStart:  mockCodeStart,
		CodeEnd:    mockCodeEnd,
		CodeOffset: mockCodeOffset,
		BandMin:    mockBandMin,
		BandMax:    mockBandMax,
	}
}

func (m *mockBackend) SingleFlight() bool { return false }

func (m *mockBackend) Reset(context.Context) error { return nil }

func (m *mockBackend) Close() error { return nil }
