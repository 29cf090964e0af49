package vad

import "testing"

func int16Frame(n int, val int16) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		out[2*i] = byte(val)
		out[2*i+1] = byte(val >> 8)
	}
	return out
}

func TestRMSDetectorSilenceVsSpeech(t *testing.T) {
	d := NewRMSDetector(0.15, 1024)
	silence := make([]byte, 1024)
	speech, err := d.IsSpeech(silence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if speech {
		t.Error("expected silence to not classify as speech")
	}

	loud := int16Frame(512, 20000)
	speech, err = d.IsSpeech(loud)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !speech {
		t.Error("expected loud frame to classify as speech")
	}
}

func TestRMSDetectorRejectsWrongSize(t *testing.T) {
	d := NewRMSDetector(0.15, 1024)
	if _, err := d.IsSpeech(make([]byte, 100)); err == nil {
		t.Error("expected shape error for wrong frame size")
	}
}

func TestRMSDetectorDeterministic(t *testing.T) {
	d := NewRMSDetector(0.15, 1024)
	frame := int16Frame(512, 5000)
	p1, _ := d.Probability(frame)
	p2, _ := d.Probability(frame)
	if p1 != p2 {
		t.Errorf("expected deterministic probability, got %v then %v", p1, p2)
	}
}
