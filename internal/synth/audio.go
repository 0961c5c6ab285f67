package synth

import "math"

// Cleanup trims the codec's warm-up artifact from the head of a decoded clip
// and applies a short linear fade at both ends. Chunks are decoded
// independently, so without the fades naive concatenation clicks at every
// chunk boundary. The fade is clamped to a quarter of the clip.
func Cleanup(samples []float32, trim, fade int) []float32 {
	if trim > 0 && len(samples) > trim {
		samples = samples[trim:]
	}
	if fade > len(samples)/4 {
		fade = len(samples) / 4
	}
	if fade > 0 {
		for i := 0; i < fade; i++ {
			ramp := float32(i) / float32(fade)
			samples[i] *= ramp
			samples[len(samples)-1-i] *= ramp
		}
	}
	return samples
}

// RMS computes root-mean-square amplitude, the silence detector.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
