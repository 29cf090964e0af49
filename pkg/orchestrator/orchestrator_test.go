package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/jarvis-ear/jarvisear/pkg/session"
)

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}

type fakeVAD struct {
	speech map[string]bool
}

func (f *fakeVAD) IsSpeech(frame []byte) (bool, error)    { return f.speech[string(frame)], nil }
func (f *fakeVAD) Probability(frame []byte) (float64, error) { return 0, nil }
func (f *fakeVAD) Reset()                                  {}
func (f *fakeVAD) SetThreshold(float64)                    {}
func (f *fakeVAD) Threshold() float64                       { return 0 }

type fakeCapture struct {
	frames  [][]byte
	preroll []byte
	stopped bool
}

func (f *fakeCapture) GetFrame(time.Duration) []byte {
	if len(f.frames) == 0 {
		return nil
	}
	fr := f.frames[0]
	f.frames = f.frames[1:]
	return fr
}
func (f *fakeCapture) DrainPreroll() []byte { return f.preroll }
func (f *fakeCapture) Stop()                { f.stopped = true }

type fakeWake struct {
	hitOn   string
	resets  int
}

func (f *fakeWake) Detect(frame []byte) (bool, error) { return string(frame) == f.hitOn, nil }
func (f *fakeWake) Reset()                            { f.resets++ }

type fakePlayback struct {
	chimes  int
	stopped bool
}

func (f *fakePlayback) Enqueue(int, string, string) {}
func (f *fakePlayback) SignalDone(int)              {}
func (f *fakePlayback) PlayChime()                  { f.chimes++ }
func (f *fakePlayback) Stop()                       { f.stopped = true }

func TestHandleIdleTriggersWakeWordAndResets(t *testing.T) {
	cap := &fakeCapture{preroll: []byte("pre")}
	wake := &fakeWake{hitOn: "hey"}
	v := &fakeVAD{speech: map[string]bool{"hey": true}}
	pb := &fakePlayback{}
	sm := session.New(session.Config{SilenceTimeout: time.Second, ConversationWindow: time.Second}, nil)

	o := New(Config{}, testLogger{}, cap, v, wake, sm, nil, pb, nil)
	o.handleIdle([]byte("hey"), true)

	if sm.State() != session.StateCapturing {
		t.Fatalf("expected CAPTURING after wake word, got %s", sm.State())
	}
	if wake.resets != 1 {
		t.Errorf("expected wake-word reset once, got %d", wake.resets)
	}
	if pb.chimes != 1 {
		t.Errorf("expected chime played once, got %d", pb.chimes)
	}
	if o.stats.wakeCount.Load() != 1 {
		t.Errorf("expected wake count 1, got %d", o.stats.wakeCount.Load())
	}
}

func TestHandleIdleIgnoresNonMatchingSpeech(t *testing.T) {
	cap := &fakeCapture{}
	wake := &fakeWake{hitOn: "hey"}
	v := &fakeVAD{}
	sm := session.New(session.Config{SilenceTimeout: time.Second, ConversationWindow: time.Second}, nil)

	o := New(Config{}, testLogger{}, cap, v, wake, sm, nil, nil, nil)
	o.handleIdle([]byte("nope"), true)

	if sm.State() != session.StateIdle {
		t.Fatalf("expected IDLE, got %s", sm.State())
	}
}

func TestHandleConversationTransitionsOnSpeech(t *testing.T) {
	sm := session.New(session.Config{SilenceTimeout: time.Second, ConversationWindow: time.Hour, EnableConversation: true}, nil)
	sm.OnTTSDone()
	if sm.State() != session.StateConversation {
		t.Fatal("setup: expected CONVERSATION")
	}

	o := New(Config{}, testLogger{}, &fakeCapture{}, &fakeVAD{}, &fakeWake{}, sm, nil, nil, nil)
	o.handleConversation(true)

	if sm.State() != session.StateCapturing {
		t.Fatalf("expected CAPTURING after conversation speech, got %s", sm.State())
	}
}

func TestShutdownStopsAllComponents(t *testing.T) {
	cap := &fakeCapture{}
	pb := &fakePlayback{}
	sm := session.New(session.Config{SilenceTimeout: time.Second, ConversationWindow: time.Second}, nil)

	o := New(Config{}, testLogger{}, cap, &fakeVAD{}, &fakeWake{}, sm, nil, pb, nil)
	o.shutdown()

	if !cap.stopped {
		t.Error("expected capture stopped")
	}
	if !pb.stopped {
		t.Error("expected player stopped")
	}
}

func TestRunExitsPromptlyOnContextCancel(t *testing.T) {
	cap := &fakeCapture{}
	sm := session.New(session.Config{SilenceTimeout: time.Second, ConversationWindow: time.Second}, nil)
	o := New(Config{FrameQueuePoll: 10 * time.Millisecond}, testLogger{}, cap, &fakeVAD{}, &fakeWake{}, sm, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}
