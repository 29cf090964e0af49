package config

import "testing"

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoaderDefaults(t *testing.T) {
	l := Loader{Lookup: lookupFrom(map[string]string{
		"JARVIS_PASSWORD": "jarvis",
	})}
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SampleRate != DefaultSampleRate {
		t.Errorf("expected default sample rate %d, got %d", DefaultSampleRate, cfg.SampleRate)
	}
	if cfg.VADThreshold != DefaultVADThreshold {
		t.Errorf("expected default vad threshold %v, got %v", DefaultVADThreshold, cfg.VADThreshold)
	}
}

func TestLoaderOverrides(t *testing.T) {
	l := Loader{Lookup: lookupFrom(map[string]string{
		"JARVIS_PASSWORD":           "jarvis",
		"JARVIS_VAD_THRESHOLD":      "0.3",
		"JARVIS_ENABLE_CONVERSATION": "false",
		"JARVIS_SAMPLE_RATE":        "8000",
	})}
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VADThreshold != 0.3 {
		t.Errorf("expected overridden threshold 0.3, got %v", cfg.VADThreshold)
	}
	if cfg.EnableConversation {
		t.Error("expected EnableConversation false")
	}
	if cfg.SampleRate != 8000 {
		t.Errorf("expected overridden sample rate 8000, got %d", cfg.SampleRate)
	}
}

func TestLoaderRejectsMissingPassword(t *testing.T) {
	l := Loader{Lookup: lookupFrom(map[string]string{})}
	if _, err := l.Load(); err == nil {
		t.Error("expected error when JARVIS_PASSWORD is unset")
	}
}
