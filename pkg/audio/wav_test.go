package audio

import (
	"bytes"
	"testing"
)

func TestNewWavBuffer(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	sampleRate := 44100
	wav := NewWavBuffer(pcm, sampleRate)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("Expected RIFF prefix")
	}

	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("Expected WAVE format identifier")
	}

	expectedLen := 44 + len(pcm)
	if len(wav) != expectedLen {
		t.Errorf("Expected length %d, got %d", expectedLen, len(wav))
	}
}

func TestWavRoundTrip(t *testing.T) {
	pcm := make([]byte, 1024)
	for i := range pcm {
		pcm[i] = byte(i % 7)
	}
	wav := NewWavBuffer(pcm, 16000)
	got, err := DecodePCM(wav)
	if err != nil {
		t.Fatalf("DecodePCM returned error: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(pcm))
	}
}

func TestDecodePCMRejectsGarbage(t *testing.T) {
	if _, err := DecodePCM([]byte("not a wav file")); err == nil {
		t.Error("expected error decoding non-wav input")
	}
}
