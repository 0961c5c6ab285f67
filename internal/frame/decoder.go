// Package frame unpacks raw generation output into hierarchical codec codes.
//
// The generation backend emits a flat token stream: control markers, incidental
// non-audio tokens, and audio-band tokens. Audio tokens arrive in 7-token
// frames whose slots map to three residual codebook levels. The slot layout is
// [L1, L2a, L3a, L3b, L2b, L3c, L3d]: the second L2 slot sits at position 4,
// not position 2. Getting that wrong decodes without error and produces
// garbled speech, so the mapping is pinned by a regression test.
package frame

import (
	"errors"
	"fmt"
)

// ErrEmptyAudio reports that a token stream contained no usable audio frames.
var ErrEmptyAudio = errors.New("no audio frames in token stream")

// TokensPerFrame is the number of audio-band tokens per codec time-step.
const TokensPerFrame = 7

// CodebookSize is the modulus for normalizing slot values into codebook space.
const CodebookSize = 4096

// Markers carries the model-specific control token values and the numeric
// audio-token band. These are an artifact of the deployed model, supplied by
// the backend integration rather than fixed here.
type Markers struct {
	CodeStart  int
	CodeEnd    int
	CodeOffset int
	BandMin    int
	BandMax    int
}

// Options tunes the partial-frame policy.
type Options struct {
	// PadPartial repeats the last token to complete a trailing partial frame
	// instead of dropping it. Dropping loses up to a frame of trailing audio.
	PadPartial bool
}

// DefaultOptions pads partial frames, matching the reference behavior.
func DefaultOptions() Options {
	return Options{PadPartial: true}
}

// Codes holds the three parallel codebook streams for one decoded chunk.
// len(L1) == Frames, len(L2) == 2*Frames, len(L3) == 4*Frames.
type Codes struct {
	L1 []int
	L2 []int
	L3 []int
}

// Frames returns the number of codec time-steps.
func (c Codes) Frames() int { return len(c.L1) }

// Decode extracts the audio region from tokens, filters it to the audio band,
// and unpacks complete 7-token frames into codebook codes.
//
// The audio region starts after the first CodeStart marker (or at index 0 when
// absent) and ends before the first CodeEnd marker (or at end-of-stream). A
// trailing partial frame is padded with its own last token when opts.PadPartial
// is set and at least one token was retained; zero retained tokens fail with
// ErrEmptyAudio.
func Decode(tokens []int, m Markers, opts Options) (Codes, error) {
	region := audioRegion(tokens, m)

	var band []int
	for _, tok := range region {
		if tok >= m.BandMin && tok <= m.BandMax {
			band = append(band, tok)
		}
	}
	if len(band) == 0 {
		return Codes{}, fmt.Errorf("decode tokens: %w", ErrEmptyAudio)
	}

	if residual := len(band) % TokensPerFrame; residual != 0 {
		if opts.PadPartial {
			last := band[len(band)-1]
			for i := residual; i < TokensPerFrame; i++ {
				band = append(band, last)
			}
		} else {
			band = band[:len(band)-residual]
		}
	}

	frames := len(band) / TokensPerFrame
	if frames == 0 {
		return Codes{}, fmt.Errorf("decode tokens: %w", ErrEmptyAudio)
	}

	codes := Codes{
		L1: make([]int, 0, frames),
		L2: make([]int, 0, 2*frames),
		L3: make([]int, 0, 4*frames),
	}
	for i := 0; i < frames; i++ {
		s := band[i*TokensPerFrame : (i+1)*TokensPerFrame]
		codes.L1 = append(codes.L1, normalize(s[0], m))
		codes.L2 = append(codes.L2, normalize(s[1], m), normalize(s[4], m))
		codes.L3 = append(codes.L3,
			normalize(s[2], m), normalize(s[3], m),
			normalize(s[5], m), normalize(s[6], m))
	}
	return codes, nil
}

// audioRegion slices tokens to the span between the CodeStart and CodeEnd
// markers, exclusive on both ends.
func audioRegion(tokens []int, m Markers) []int {
	start := 0
	for i, tok := range tokens {
		if tok == m.CodeStart {
			start = i + 1
			break
		}
	}
	end := len(tokens)
	for i := start; i < len(tokens); i++ {
		if tokens[i] == m.CodeEnd {
			end = i
			break
		}
	}
	return tokens[start:end]
}

func normalize(tok int, m Markers) int {
	v := (tok - m.CodeOffset) % CodebookSize
	if v < 0 {
		v += CodebookSize
	}
	return v
}
