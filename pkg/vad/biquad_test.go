package vad

import "testing"

func TestHighpassBiquadAttenuatesDC(t *testing.T) {
	f := newHighpassBiquad(highpassCutoffHz, 16000)
	// Feed a long constant (DC) signal; a high-pass filter should drive
	// its output toward zero after the initial transient settles.
	samples := make([]float32, 4000)
	for i := range samples {
		samples[i] = 0.5
	}
	f.Process(samples)
	tail := samples[len(samples)-100:]
	var maxAbs float32
	for _, s := range tail {
		if s < 0 {
			s = -s
		}
		if s > maxAbs {
			maxAbs = s
		}
	}
	if maxAbs > 0.01 {
		t.Errorf("expected DC component to be attenuated near zero, got max |y|=%v", maxAbs)
	}
}

func TestHighpassBiquadResetClearsMemory(t *testing.T) {
	f := newHighpassBiquad(highpassCutoffHz, 16000)
	samples := []float32{1, 1, 1, 1}
	f.Process(samples)
	if f.w0 == 0 && f.w1 == 0 {
		t.Fatal("expected nonzero filter memory after processing")
	}
	f.Reset()
	if f.w0 != 0 || f.w1 != 0 {
		t.Error("expected filter memory to be zero after Reset")
	}
}

func TestHighpassBiquadPassesAC(t *testing.T) {
	// A signal well above the cutoff should pass through with limited
	// attenuation relative to a DC signal.
	f := newHighpassBiquad(highpassCutoffHz, 16000)
	samples := make([]float32, 1600)
	for i := range samples {
		// ~1kHz tone at 16kHz sample rate
		if (i/8)%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}
	f.Process(samples)
	var sumSq float64
	for _, s := range samples[800:] {
		sumSq += float64(s) * float64(s)
	}
	if sumSq == 0 {
		t.Error("expected high-frequency content to pass through the filter")
	}
}
