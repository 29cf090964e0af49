package backend

import (
	"context"
	"testing"
)

func TestToWebsocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3000":  "ws://localhost:3000/voice",
		"https://api.example.com": "wss://api.example.com/voice",
		"https://api.example.com/": "wss://api.example.com/voice",
	}
	for in, want := range cases {
		got, err := toWebsocketURL(in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
		if got != want {
			t.Errorf("toWebsocketURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDispatchTranscript(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:3000", Password: "x"}, nil)
	c.dispatch(envelope{Type: EventTranscript, Data: map[string]interface{}{"text": "hello"}})

	select {
	case ev := <-c.events:
		if ev.Type != EventTranscript || ev.Text != "hello" {
			t.Errorf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected event on channel")
	}
}

func TestDispatchPongDoesNotEnqueue(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:3000", Password: "x"}, nil)
	c.dispatch(envelope{Type: EventPong})

	select {
	case ev := <-c.events:
		t.Fatalf("expected no event for pong, got %+v", ev)
	default:
	}
}

func TestDispatchTTSChunk(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:3000", Password: "x"}, nil)
	c.dispatch(envelope{Type: EventTTSChunk, Data: map[string]interface{}{
		"index": float64(2), "audio": "QUJD", "contentType": "audio/mpeg",
	}})

	ev := <-c.events
	if ev.Index != 2 || ev.Audio != "QUJD" || ev.ContentType != "audio/mpeg" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestSendUtteranceDropsWhenDisconnected(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:3000", Password: "x"}, nil)
	// conn is nil until a successful connectAndServe; SendUtterance must not
	// panic or block, and must return nil (drop-with-warning policy).
	if err := c.SendUtterance(context.Background(), []byte("pcm")); err != nil {
		t.Errorf("expected nil error on drop, got %v", err)
	}
}
