package vad

import "math"

// highpassCutoffHz matches the DC-hum cutoff used against Intel HDA DMIC
// hardware hum: a 2nd-order Butterworth high-pass removes sub-100Hz energy
// that would otherwise drown out speech probability.
const highpassCutoffHz = 85.0

// highpassBiquad is a 2nd-order Butterworth high-pass, derived by bilinear
// transform, applied in Direct Form II Transposed. The coefficient
// derivation and update equations mirror the reference implementation
// bit-for-bit: the VAD's correctness depends on matching them exactly, not
// just approximating a high-pass response.
type highpassBiquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	w0, w1     float64 // filter memory (Direct Form II Transposed)
}

func newHighpassBiquad(cutoffHz float64, sampleRate int) *highpassBiquad {
	omega := 2.0 * math.Pi * cutoffHz / float64(sampleRate)
	omegaW := math.Tan(omega / 2.0)
	omegaW2 := omegaW * omegaW

	sqrt2 := math.Sqrt2
	norm := 1.0 / (1.0 + sqrt2*omegaW + omegaW2)

	return &highpassBiquad{
		b0: norm,
		b1: -2.0 * norm,
		b2: norm,
		a1: 2.0 * (omegaW2 - 1.0) * norm,
		a2: (1.0 - sqrt2*omegaW + omegaW2) * norm,
	}
}

// Process filters in place, carrying filter memory across calls.
func (f *highpassBiquad) Process(samples []float32) {
	w0, w1 := f.w0, f.w1
	for i, s := range samples {
		x := float64(s)
		y := f.b0*x + w0
		w0 = f.b1*x - f.a1*y + w1
		w1 = f.b2*x - f.a2*y
		samples[i] = float32(y)
	}
	f.w0, f.w1 = w0, w1
}

// Reset zeros the filter memory.
func (f *highpassBiquad) Reset() {
	f.w0, f.w1 = 0, 0
}
