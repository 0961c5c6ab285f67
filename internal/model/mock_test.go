package model

import (
	"context"
	"testing"

	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/frame"
)

func TestMockBackendDeterministic(t *testing.T) {
	b := NewMockBackend()
	req := Request{Text: "Some narration text.", Voice: "narrator", Seed: 7}

	first, err := b.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := b.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("token %d differs: %d vs %d", i, first[i], second[i])
		}
	}

	req.Seed = 8
	third, _ := b.Generate(context.Background(), req)
	diff := len(third) != len(first)
	for i := 0; !diff && i < len(third); i++ {
		diff = third[i] != first[i]
	}
	if !diff {
		t.Fatal("different seeds should produce different streams")
	}
}

func TestMockBackendDecodes(t *testing.T) {
	b := NewMockBackend()
	tokens, err := b.Generate(context.Background(), Request{
		Text:     "One two three.",
		Voice:    "v",
		Sampling: config.SamplingConfig{MaxTokens: 2500},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	codes, err := frame.Decode(tokens, b.Markers(), frame.DefaultOptions())
	if err != nil {
		t.Fatalf("mock output must frame-decode: %v", err)
	}
	if codes.Frames() == 0 {
		t.Fatal("expected at least one frame")
	}
	if len(codes.L2) != 2*codes.Frames() || len(codes.L3) != 4*codes.Frames() {
		t.Fatalf("level lengths inconsistent: %d/%d/%d", len(codes.L1), len(codes.L2), len(codes.L3))
	}
}

func TestPromptPayload(t *testing.T) {
	got := PromptPayload("calm narrator", " Hello there. ")
	want := `<description="calm narrator"> Hello there.`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
