package ring

import (
	"bytes"
	"testing"
)

func frame(b byte) []byte { return []byte{b, b} }

func TestBufferDrainEmpty(t *testing.T) {
	b := New(4)
	if got := b.Drain(); got != nil {
		t.Errorf("expected nil drain on empty buffer, got %v", got)
	}
}

func TestBufferEvictsOldest(t *testing.T) {
	b := New(3)
	for i := byte(1); i <= 5; i++ {
		b.Append(frame(i))
	}
	if b.Len() != 3 {
		t.Fatalf("expected len 3, got %d", b.Len())
	}
	want := []byte{3, 3, 4, 4, 5, 5}
	got := b.Drain()
	if !bytes.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if b.Len() != 0 {
		t.Errorf("expected buffer empty after drain, got len %d", b.Len())
	}
}

func TestBufferCapBound(t *testing.T) {
	b := New(15)
	for i := 0; i < 1000; i++ {
		b.Append(frame(byte(i)))
		if b.Len() > b.Cap() {
			t.Fatalf("buffer exceeded capacity: len=%d cap=%d", b.Len(), b.Cap())
		}
	}
}

func TestBufferClear(t *testing.T) {
	b := New(4)
	b.Append(frame(1))
	b.Append(frame(2))
	b.Clear()
	if b.Len() != 0 {
		t.Errorf("expected len 0 after clear, got %d", b.Len())
	}
	if got := b.Drain(); got != nil {
		t.Errorf("expected nil drain after clear, got %v", got)
	}
}
