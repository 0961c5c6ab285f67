package frame

import (
	"errors"
	"testing"
)

// testMarkers uses a small synthetic band so tokens are easy to construct:
// band [1000, 1999], offset 1000, so token 1000+n normalizes to n.
func testMarkers() Markers {
	return Markers{
		CodeStart:  50,
		CodeEnd:    51,
		CodeOffset: 1000,
		BandMin:    1000,
		BandMax:    1999,
	}
}

func band(values ...int) []int {
	tokens := make([]int, len(values))
	for i, v := range values {
		tokens[i] = 1000 + v
	}
	return tokens
}

func TestDecodeFieldOrder(t *testing.T) {
	// One frame with distinct slot values pins the historically bug-prone
	// mapping: the second L2 slot is at position 4, not position 2.
	tokens := band(10, 20, 30, 31, 21, 32, 33)
	codes, err := Decode(tokens, testMarkers(), DefaultOptions())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if codes.Frames() != 1 {
		t.Fatalf("expected 1 frame, got %d", codes.Frames())
	}
	wantL1 := []int{10}
	wantL2 := []int{20, 21}
	wantL3 := []int{30, 31, 32, 33}
	assertInts(t, "L1", codes.L1, wantL1)
	assertInts(t, "L2", codes.L2, wantL2)
	assertInts(t, "L3", codes.L3, wantL3)
}

func TestDecodePartialFramePadding(t *testing.T) {
	// 14 band tokens (2 complete frames) plus 3 extra: the third frame's 4
	// missing slots take the value of the last extra token.
	values := make([]int, 0, 17)
	for i := 0; i < 14; i++ {
		values = append(values, i)
	}
	values = append(values, 100, 101, 102)
	codes, err := Decode(band(values...), testMarkers(), DefaultOptions())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if codes.Frames() != 3 {
		t.Fatalf("expected 3 frames, got %d", codes.Frames())
	}
	// Third frame slots: [100, 101, 102, 102, 102, 102, 102].
	if codes.L1[2] != 100 {
		t.Fatalf("expected padded frame L1=100, got %d", codes.L1[2])
	}
	assertInts(t, "third frame L2", codes.L2[4:6], []int{101, 102})
	assertInts(t, "third frame L3", codes.L3[8:12], []int{102, 102, 102, 102})
}

func TestDecodePartialFrameDiscard(t *testing.T) {
	values := make([]int, 17)
	for i := range values {
		values[i] = i
	}
	codes, err := Decode(band(values...), testMarkers(), Options{PadPartial: false})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if codes.Frames() != 2 {
		t.Fatalf("expected residual dropped, got %d frames", codes.Frames())
	}
}

func TestDecodeEmptyFails(t *testing.T) {
	m := testMarkers()
	for _, tokens := range [][]int{
		nil,
		{1, 2, 3},                // nothing in band
		{m.CodeStart, m.CodeEnd}, // markers only
	} {
		if _, err := Decode(tokens, m, DefaultOptions()); !errors.Is(err, ErrEmptyAudio) {
			t.Fatalf("expected ErrEmptyAudio for %v, got %v", tokens, err)
		}
	}
}

func TestDecodeRegionMarkers(t *testing.T) {
	m := testMarkers()

	// Tokens before CodeStart and after CodeEnd are outside the audio region
	// even when they fall inside the band.
	tokens := append(band(999), m.CodeStart)
	tokens = append(tokens, band(10, 20, 30, 31, 21, 32, 33)...)
	tokens = append(tokens, m.CodeEnd)
	tokens = append(tokens, band(500, 501)...)

	codes, err := Decode(tokens, m, DefaultOptions())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if codes.Frames() != 1 {
		t.Fatalf("expected 1 frame, got %d", codes.Frames())
	}
	assertInts(t, "L1", codes.L1, []int{10})
}

func TestDecodeMissingMarkersAssumesWholeStream(t *testing.T) {
	// No CodeStart: region starts at 0. No CodeEnd: region runs to EOS.
	tokens := band(10, 20, 30, 31, 21, 32, 33)
	tokens = append(tokens, 5) // non-audio token interleaved, discarded
	tokens = append(tokens, band(1, 2, 3, 4, 5, 6, 7)...)

	codes, err := Decode(tokens, testMarkers(), DefaultOptions())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if codes.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", codes.Frames())
	}
}

func TestNormalizeWrapsCodebook(t *testing.T) {
	m := Markers{CodeOffset: 100, BandMin: 0, BandMax: 1 << 20}
	tokens := []int{
		100 + 10,   // normalizes to 10
		100 + 4096, // wraps to 0
		100 + 4097, // wraps to 1
		100, 100, 100, 100,
	}
	codes, err := Decode(tokens, m, DefaultOptions())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	assertInts(t, "L1", codes.L1, []int{10})
	assertInts(t, "L2", codes.L2, []int{0, 0})
	assertInts(t, "L3", codes.L3, []int{1, 0, 0, 0})
}

func assertInts(t *testing.T, label string, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s length mismatch: got %v want %v", label, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s[%d]: got %d want %d (full: %v)", label, i, got[i], want[i], got)
		}
	}
}
