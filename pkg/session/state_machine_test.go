package session

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		SilenceTimeout:     50 * time.Millisecond,
		ConversationWindow: 100 * time.Millisecond,
		EnableConversation: true,
	}
}

func TestWakeWordTransitionsToCapturing(t *testing.T) {
	m := New(testConfig(), nil)
	m.OnWakeWord([]byte("preroll"))
	if m.State() != StateCapturing {
		t.Fatalf("expected CAPTURING, got %s", m.State())
	}
}

func TestWakeWordIgnoredWhenNotIdle(t *testing.T) {
	m := New(testConfig(), nil)
	m.OnWakeWord([]byte("preroll"))
	m.OnWakeWord([]byte("second"))
	if m.State() != StateCapturing {
		t.Fatalf("expected CAPTURING still, got %s", m.State())
	}
}

func TestSilenceBoundaryFinalizes(t *testing.T) {
	m := New(testConfig(), nil)
	m.OnWakeWord(nil)

	audio, done := m.OnFrame([]byte("a"), true)
	if done {
		t.Fatal("should not finalize immediately after speech")
	}
	if audio != nil {
		t.Fatal("expected nil audio before finalize")
	}

	time.Sleep(60 * time.Millisecond)
	audio, done = m.OnFrame([]byte("b"), false)
	if !done {
		t.Fatal("expected finalize after silence timeout")
	}
	if string(audio) != "ab" {
		t.Errorf("expected concatenated buffer 'ab', got %q", audio)
	}
	if m.State() != StateIdle {
		t.Errorf("expected IDLE after finalize, got %s", m.State())
	}
}

func TestOnFrameOutsideCapturingIsNoop(t *testing.T) {
	m := New(testConfig(), nil)
	audio, done := m.OnFrame([]byte("x"), true)
	if done || audio != nil {
		t.Error("expected no-op when not capturing")
	}
}

func TestConversationFollowUp(t *testing.T) {
	m := New(testConfig(), nil)
	m.OnWakeWord(nil)
	time.Sleep(60 * time.Millisecond)
	m.OnFrame([]byte("x"), false) // finalize -> idle

	m.OnTTSDone()
	if m.State() != StateConversation {
		t.Fatalf("expected CONVERSATION, got %s", m.State())
	}

	m.OnConversationSpeech()
	if m.State() != StateCapturing {
		t.Fatalf("expected CAPTURING after conversation speech, got %s", m.State())
	}
}

func TestConversationTimesOutToIdle(t *testing.T) {
	m := New(testConfig(), nil)
	m.OnTTSDone()
	if m.State() != StateConversation {
		t.Fatalf("expected CONVERSATION, got %s", m.State())
	}
	time.Sleep(120 * time.Millisecond)
	m.CheckConversationTimeout()
	if m.State() != StateIdle {
		t.Fatalf("expected IDLE after conversation window elapses, got %s", m.State())
	}
}

func TestConversationDisabledSkipsToIdle(t *testing.T) {
	cfg := testConfig()
	cfg.EnableConversation = false
	m := New(cfg, nil)
	m.OnTTSDone()
	if m.State() != StateIdle {
		t.Fatalf("expected IDLE when conversation disabled, got %s", m.State())
	}
}

func TestForceResetFromAnyState(t *testing.T) {
	m := New(testConfig(), nil)
	m.OnWakeWord([]byte("x"))
	m.ForceReset()
	if m.State() != StateIdle {
		t.Errorf("expected IDLE after force reset, got %s", m.State())
	}
}
