// Package orchestrator owns the single-threaded decision loop: it consumes
// frames from capture, runs VAD and wake-word gating, drives the capture
// state machine, and routes backend events to the player and display
// client. It is the sole mutator of VAD and wake-word state and drives
// every state-machine transition except tts_done, which the player
// delivers from its own goroutine through the DoneSink capability.
package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jarvis-ear/jarvisear/pkg/audio"
	"github.com/jarvis-ear/jarvisear/pkg/backend"
	"github.com/jarvis-ear/jarvisear/pkg/session"
	"github.com/jarvis-ear/jarvisear/pkg/vad"
)

// Logger is the minimal structured logging surface the orchestrator needs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// FrameSource is the subset of pkg/capture.Capture the decision loop needs.
type FrameSource interface {
	GetFrame(timeout time.Duration) []byte
	DrainPreroll() []byte
	Stop()
}

// WakeDetector is the subset of pkg/wakeword.Detector the decision loop
// needs.
type WakeDetector interface {
	Detect(frame []byte) (bool, error)
	Reset()
}

// PlaybackSink is the subset of pkg/player.Player the decision loop needs.
type PlaybackSink interface {
	Enqueue(index int, audioB64, contentType string)
	SignalDone(totalChunks int)
	PlayChime()
	Stop()
}

// BackendClient is the subset of pkg/backend.Client the decision loop
// needs.
type BackendClient interface {
	Events() <-chan backend.Event
	SendUtterance(ctx context.Context, wavPCM []byte) error
	Stop()
}

// HUD is the subset of pkg/display.Client the decision loop needs.
type HUD interface {
	HUD(state string)
	Restore()
}

// Config carries the tunables the decision loop itself consults; device,
// model, and transport configuration lives in each owned component.
type Config struct {
	SampleRate     int
	FrameQueuePoll time.Duration
	StatsInterval  time.Duration
}

func (c Config) defaults() Config {
	if c.FrameQueuePoll == 0 {
		c.FrameQueuePoll = 100 * time.Millisecond
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = 30 * time.Second
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	return c
}

// Orchestrator wires the capture, VAD, wake-word, state machine, backend,
// player, and display components into the daemon's single decision loop.
type Orchestrator struct {
	cfg Config
	log Logger

	capture FrameSource
	vad     vad.Detector
	wake    WakeDetector
	sm      *session.Machine
	backend BackendClient
	player  PlaybackSink
	display HUD

	stats struct {
		frames       atomic.Int64
		speechFrames atomic.Int64
		wakeCount    atomic.Int64
		captureCount atomic.Int64
	}
}

// New assembles an Orchestrator from its already-constructed components.
// Each component owns its own device/model/transport lifecycle; New does
// no I/O itself. backend, player, and display may be nil, in which case
// the corresponding behavior is skipped (used by tests and by a daemon
// configured without a display controller).
func New(cfg Config, log Logger, cap FrameSource, v vad.Detector, ww WakeDetector, sm *session.Machine, bc BackendClient, pl PlaybackSink, disp HUD) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg.defaults(),
		log:     log,
		capture: cap,
		vad:     v,
		wake:    ww,
		sm:      sm,
		backend: bc,
		player:  pl,
		display: disp,
	}
}

// Run drives the decision loop until ctx is cancelled, then shuts down the
// capture, backend, and player components. It returns once shutdown
// completes.
func (o *Orchestrator) Run(ctx context.Context) {
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		o.eventLoop(ctx)
	}()

	statsTicker := time.NewTicker(o.cfg.StatsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			<-eventsDone
			return
		case <-statsTicker.C:
			o.logStats()
		default:
		}

		frame := o.capture.GetFrame(o.cfg.FrameQueuePoll)
		if frame == nil {
			if o.sm.State() == session.StateConversation {
				o.sm.CheckConversationTimeout()
			}
			continue
		}
		o.stats.frames.Add(1)

		isSpeech, err := o.vad.IsSpeech(frame)
		if err != nil {
			o.log.Warn("orchestrator: vad error, skipping frame", "err", err)
			continue
		}
		if isSpeech {
			o.stats.speechFrames.Add(1)
		}

		switch o.sm.State() {
		case session.StateIdle:
			o.handleIdle(frame, isSpeech)
		case session.StateCapturing:
			o.handleCapturing(ctx, frame, isSpeech)
		case session.StateConversation:
			o.handleConversation(isSpeech)
		}
	}
}

func (o *Orchestrator) handleIdle(frame []byte, isSpeech bool) {
	if !isSpeech || o.wake == nil {
		return
	}
	hit, err := o.wake.Detect(frame)
	if err != nil {
		o.log.Warn("orchestrator: wake-word error, skipping frame", "err", err)
		return
	}
	if !hit {
		return
	}

	o.stats.wakeCount.Add(1)
	o.log.Info("wake word detected")
	o.sm.OnWakeWord(o.capture.DrainPreroll())
	o.wake.Reset()
	o.vad.Reset()
	if o.player != nil {
		o.player.PlayChime()
	}
	if o.display != nil {
		o.display.HUD("listening")
	}
}

func (o *Orchestrator) handleCapturing(ctx context.Context, frame []byte, isSpeech bool) {
	captured, done := o.sm.OnFrame(frame, isSpeech)
	if !done {
		return
	}

	o.stats.captureCount.Add(1)
	o.vad.Reset()
	if o.wake != nil {
		o.wake.Reset()
	}
	if o.display != nil {
		o.display.HUD("processing")
	}

	wav := audio.NewWavBuffer(captured, o.cfg.SampleRate)
	if o.backend != nil {
		if err := o.backend.SendUtterance(ctx, wav); err != nil {
			o.log.Warn("orchestrator: failed to ship utterance", "err", err)
		}
	}
}

func (o *Orchestrator) handleConversation(isSpeech bool) {
	o.sm.CheckConversationTimeout()
	if isSpeech {
		o.sm.OnConversationSpeech()
	}
}

// eventLoop is the sole reader of the backend's event channel. It runs on
// its own goroutine, separate from Run's decision loop, and handles each
// event itself by handing work to the player or the display client; it
// never touches VAD, wake-word, or state-machine state.
func (o *Orchestrator) eventLoop(ctx context.Context) {
	if o.backend == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.backend.Events():
			if !ok {
				return
			}
			o.handleBackendEvent(ev)
		}
	}
}

func (o *Orchestrator) handleBackendEvent(ev backend.Event) {
	switch ev.Type {
	case backend.EventListening:
		if o.display != nil {
			o.display.HUD("listening")
		}
	case backend.EventTranscript:
		o.log.Info("transcript", "text", ev.Text)
	case backend.EventProcessing:
		if o.display != nil {
			o.display.HUD("processing")
		}
	case backend.EventThinking:
		o.log.Debug("thinking", "provider", ev.Provider)
	case backend.EventTTSChunk:
		if o.player != nil {
			if o.display != nil {
				o.display.HUD("talking")
			}
			o.player.Enqueue(ev.Index, ev.Audio, ev.ContentType)
		}
	case backend.EventTTSDone:
		if o.player != nil {
			o.player.SignalDone(ev.TotalChunks)
		}
		if o.display != nil {
			o.display.Restore()
		}
	case backend.EventError:
		o.log.Warn("backend reported error", "error", ev.Error)
	}
}

func (o *Orchestrator) logStats() {
	frames := o.stats.frames.Load()
	speech := o.stats.speechFrames.Load()
	speechPct := 0.0
	if frames > 0 {
		speechPct = float64(speech) / float64(frames) * 100
	}
	o.log.Info("stats",
		"frames", frames,
		"speech_pct", speechPct,
		"wake_count", o.stats.wakeCount.Load(),
		"capture_count", o.stats.captureCount.Load(),
	)
}

func (o *Orchestrator) shutdown() {
	o.log.Info("orchestrator: shutting down")
	if o.backend != nil {
		o.backend.Stop()
	}
	if o.capture != nil {
		o.capture.Stop()
	}
	if o.player != nil {
		o.player.Stop()
	}
}
