// Command jarvisear runs the always-on voice-assistant edge daemon: it
// captures microphone audio, waits for the wake phrase, ships the
// resulting utterance to a remote backend, and plays back the streamed
// response.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jarvis-ear/jarvisear/internal/config"
	"github.com/jarvis-ear/jarvisear/internal/logging"
	"github.com/jarvis-ear/jarvisear/pkg/backend"
	"github.com/jarvis-ear/jarvisear/pkg/capture"
	"github.com/jarvis-ear/jarvisear/pkg/display"
	"github.com/jarvis-ear/jarvisear/pkg/orchestrator"
	"github.com/jarvis-ear/jarvisear/pkg/player"
	"github.com/jarvis-ear/jarvisear/pkg/session"
	"github.com/jarvis-ear/jarvisear/pkg/vad"
	"github.com/jarvis-ear/jarvisear/pkg/wakeword"
)

const shutdownGrace = config.DefaultShutdownGracePeriod

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "note: no .env file found, using system environment variables")
	}

	cfg, err := (config.Loader{}).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.LogLevel)

	cap, err := capture.New(capture.Config{
		Device:        cfg.CaptureDevice,
		SampleRate:    cfg.SampleRate,
		Channels:      cfg.Channels,
		FrameBytes:    cfg.FrameBytes(),
		QueueCapacity: cfg.QueueCapacity,
		PreRollFrames: cfg.PreRollFrames,
		StopTimeout:   config.DefaultCaptureStopTimeout,
	}, log.With("capture"))
	if err != nil {
		return fmt.Errorf("%w: %v", orchestrator.ErrCaptureInit, err)
	}
	if err := cap.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	vadEngine, err := newVAD(cfg)
	if err != nil {
		return err
	}

	wakeEngine, err := wakeword.New(wakeword.Config{
		WakeWordModel:  cfg.WakeWordModelPath,
		MelspecModel:   cfg.MelspecModelPath,
		EmbeddingModel: cfg.EmbeddingModelPath,
		OnnxLibPath:    cfg.OnnxLibPath,
		Threshold:      cfg.WakeWordThreshold,
	})
	if err != nil {
		return fmt.Errorf("%w: wake-word: %v", orchestrator.ErrModelInit, err)
	}

	sm := session.New(session.Config{
		SilenceTimeout:     cfg.SilenceTimeout,
		ConversationWindow: cfg.ConversationWindow,
		EnableConversation: cfg.EnableConversation,
	}, log.With("session"))

	backendClient := backend.New(backend.Config{
		BaseURL:           cfg.BackendURL,
		Password:          cfg.BackendPassword,
		AgentID:           cfg.AgentID,
		PingInterval:      cfg.PingInterval,
		StaleThreshold:    cfg.PingStaleThreshold,
		TokenRefreshAfter: cfg.TokenRefreshAfter,
		TokenValidFor:     cfg.TokenValidFor,
	}, log.With("backend"))
	backendClient.Start()

	var doneSink player.DoneSink = sm
	pl, err := player.New(player.Config{
		SampleRate:   cfg.PlaybackSampleRate,
		Channels:     cfg.PlaybackChannels,
		PeriodFrames: cfg.PlaybackPeriod,
		FfmpegPath:   cfg.FFmpegPath,
		Mixer: player.MixerConfig{
			Card:          cfg.MixerCardIndex,
			SpeakerVolume: cfg.SpeakerVolume,
		},
		MuteSafetyTimeout: cfg.MuteSafetyTimeout,
	}, log.With("player"), doneSink)
	if err != nil {
		log.Warn("player init failed, TTS playback disabled", "err", err)
	}

	displayClient := display.New(cfg.DisplayDaemonURL, log.With("display"))

	var playbackSink orchestrator.PlaybackSink
	if pl != nil {
		playbackSink = pl
	}

	orch := orchestrator.New(orchestrator.Config{
		SampleRate:    cfg.SampleRate,
		StatsInterval: cfg.StatsInterval,
	}, log.With("orchestrator"), cap, vadEngine, wakeEngine, sm, backendClient, playbackSink, displayClient)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runDone := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(runDone)
	}()

	select {
	case <-runDone:
	case <-shutdownOverrun(ctx, runDone):
		return orchestrator.ErrShutdownTimeout
	}
	return nil
}

// shutdownOverrun fires shutdownGrace after ctx is cancelled, giving Run a
// bounded window to finish tearing down components before main gives up
// and exits anyway.
func shutdownOverrun(ctx context.Context, runDone <-chan struct{}) <-chan time.Time {
	fired := make(chan time.Time, 1)
	go func() {
		<-ctx.Done()
		select {
		case <-runDone:
		case <-time.After(shutdownGrace):
			fired <- time.Now()
		}
	}()
	return fired
}

func newVAD(cfg config.Config) (vad.Detector, error) {
	v, err := vad.NewSileroVAD(cfg.OnnxLibPath, cfg.VADModelPath, cfg.SampleRate, cfg.VADThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orchestrator.ErrModelInit, err)
	}
	return v, nil
}
