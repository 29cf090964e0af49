package player

import "math"

// ChimeConfig parameterizes the wake-detection cue. Frequencies sit outside
// the wake-word model's active band so the chime itself can never trigger a
// re-detection.
type ChimeConfig struct {
	FreqLowHz, FreqHighHz float64
	ToneDuration          float64 // seconds
	GapDuration           float64 // seconds
	RampDuration          float64 // seconds
	Amplitude             int16
	SampleRate            int
}

func (c ChimeConfig) defaults() ChimeConfig {
	if c.FreqLowHz == 0 {
		c.FreqLowHz = 523
	}
	if c.FreqHighHz == 0 {
		c.FreqHighHz = 659
	}
	if c.ToneDuration == 0 {
		c.ToneDuration = 0.150
	}
	if c.GapDuration == 0 {
		c.GapDuration = 0.050
	}
	if c.RampDuration == 0 {
		c.RampDuration = 0.025
	}
	if c.Amplitude == 0 {
		c.Amplitude = 8000
	}
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	return c
}

// synthesizeChime renders the two-tone wake chime as interleaved stereo
// S16LE PCM, built by duplicating each mono sample to both channels.
func synthesizeChime(cfg ChimeConfig) []byte {
	cfg = cfg.defaults()
	tone1 := synthesizeTone(cfg, cfg.FreqLowHz)
	gap := make([]int16, int(cfg.GapDuration*float64(cfg.SampleRate)))
	tone2 := synthesizeTone(cfg, cfg.FreqHighHz)

	mono := make([]int16, 0, len(tone1)+len(gap)+len(tone2))
	mono = append(mono, tone1...)
	mono = append(mono, gap...)
	mono = append(mono, tone2...)

	pcm := make([]byte, len(mono)*4) // stereo, 2 bytes/sample
	for i, s := range mono {
		lo := byte(s)
		hi := byte(s >> 8)
		pcm[i*4] = lo
		pcm[i*4+1] = hi
		pcm[i*4+2] = lo
		pcm[i*4+3] = hi
	}
	return pcm
}

func synthesizeTone(cfg ChimeConfig, freqHz float64) []int16 {
	n := int(cfg.ToneDuration * float64(cfg.SampleRate))
	rampSamples := int(cfg.RampDuration * float64(cfg.SampleRate))
	samples := make([]int16, n)

	for i := 0; i < n; i++ {
		t := float64(i) / float64(cfg.SampleRate)
		envelope := 1.0
		if i < rampSamples {
			envelope = float64(i) / float64(rampSamples)
		} else if i >= n-rampSamples {
			envelope = float64(n-1-i) / float64(rampSamples)
		}
		v := math.Sin(2*math.Pi*freqHz*t) * envelope * float64(cfg.Amplitude)
		samples[i] = int16(v)
	}
	return samples
}
