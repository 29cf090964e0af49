// Package player owns the playback device and the ordered reassembly of
// out-of-order TTS chunks, along with the microphone-mute lifecycle that
// must bracket every playback session.
package player

import (
	"container/heap"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// Logger is the minimal structured logging surface the player needs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}

// DoneSink is the narrow capability the player needs on playback
// completion. The state machine satisfies it directly via OnTTSDone,
// avoiding a player-holds-state-machine object cycle.
type DoneSink interface {
	OnTTSDone()
}

type noopSink struct{}

func (noopSink) OnTTSDone() {}

// Config configures the playback device, decoder, and mixer.
type Config struct {
	SampleRate   int
	Channels     int
	PeriodFrames int

	FfmpegPath string

	Mixer             MixerConfig
	MuteSafetyTimeout time.Duration

	Chime ChimeConfig
}

func (c Config) defaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.Channels == 0 {
		c.Channels = 2
	}
	if c.PeriodFrames == 0 {
		c.PeriodFrames = 1024
	}
	if c.MuteSafetyTimeout == 0 {
		c.MuteSafetyTimeout = 60 * time.Second
	}
	return c
}

// Player owns the playback device, decodes and sequences TTS chunks, and
// drives mic mute/unmute around a playback session. The playback loop runs
// on a single dedicated goroutine; it is the sole consumer of its queue and
// the sole holder of the device handle.
type Player struct {
	cfg    Config
	log    Logger
	mixer  *mixer
	decode decoder
	sink   DoneSink

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	outMu  sync.Mutex
	outBuf []byte

	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	heapMu sync.Mutex
	pq     chunkHeap
	cursor int

	playing    atomic.Bool
	micMutedAt atomic.Value // time.Time; zero value means unmuted
}

// New opens the playback device and enables the speaker mixer controls.
// Device-open failure is not treated as fatal-at-startup by the spec, but
// the daemon has no TTS output without it, so callers should log loudly on
// error.
func New(cfg Config, log Logger, sink DoneSink) (*Player, error) {
	cfg = cfg.defaults()
	if log == nil {
		log = noopLogger{}
	}
	if sink == nil {
		sink = noopSink{}
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("player: init audio context: %w", err)
	}

	p := &Player{
		cfg:    cfg,
		log:    log,
		mixer:  newMixer(cfg.Mixer, log),
		decode: ffmpegDecode(cfg.FfmpegPath),
		sink:   sink,
		ctx:    ctx,
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	p.micMutedAt.Store(time.Time{})

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceCfg.Playback.Format = malgo.FormatS16
	deviceCfg.Playback.Channels = uint32(cfg.Channels)
	deviceCfg.SampleRate = uint32(cfg.SampleRate)
	deviceCfg.PeriodSizeInFrames = uint32(cfg.PeriodFrames)

	device, err := malgo.InitDevice(ctx.Context, deviceCfg, malgo.DeviceCallbacks{
		Data: p.onOutput,
	})
	if err != nil {
		ctx.Uninit()
		return nil, fmt.Errorf("player: init device: %w", err)
	}
	p.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		return nil, fmt.Errorf("player: start device: %w", err)
	}

	p.mixer.EnableSpeakers()

	go p.playbackLoop()

	return p, nil
}

// onOutput is malgo's playback callback: it must fill pOutput with exactly
// len(pOutput) bytes every call, zero-padding when the pending buffer runs
// dry, so the device never underruns.
func (p *Player) onOutput(pOutput, _ []byte, _ uint32) {
	p.outMu.Lock()
	n := copy(pOutput, p.outBuf)
	p.outBuf = p.outBuf[n:]
	p.outMu.Unlock()

	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

func (p *Player) write(pcm []byte) {
	periodBytes := p.cfg.PeriodFrames * p.cfg.Channels * 2
	for offset := 0; offset < len(pcm); offset += periodBytes {
		end := offset + periodBytes
		block := make([]byte, periodBytes)
		if end > len(pcm) {
			copy(block, pcm[offset:])
		} else {
			copy(block, pcm[offset:end])
		}
		p.outMu.Lock()
		p.outBuf = append(p.outBuf, block...)
		p.outMu.Unlock()
	}
}

// Enqueue adds a TTS chunk to the playback queue. Out-of-order arrivals are
// tolerated; the playback loop reorders by index.
func (p *Player) Enqueue(index int, audioB64, contentType string) {
	audio, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		p.log.Warn("player: bad base64 chunk, dropping", "index", index, "err", err)
		return
	}
	p.pushItem(chunkItem{index: index, audio: audio, contentType: contentType})
}

// SignalDone enqueues the sentinel marking the end of an utterance's
// chunks, keyed by totalChunks so it sorts after every real chunk.
func (p *Player) SignalDone(totalChunks int) {
	p.pushItem(chunkItem{index: totalChunks, sentinel: true})
}

func (p *Player) pushItem(item chunkItem) {
	p.heapMu.Lock()
	heap.Push(&p.pq, item)
	p.heapMu.Unlock()

	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// IsPlaying reports whether a TTS session is currently in progress.
func (p *Player) IsPlaying() bool { return p.playing.Load() }

// PlayChime synthesizes and writes the wake-detection cue directly to the
// output buffer. It is a synchronous action independent of the chunk
// queue, played while the mic is still live.
func (p *Player) PlayChime() {
	cfg := p.cfg.Chime
	cfg.SampleRate = p.cfg.SampleRate
	p.write(synthesizeChime(cfg))
}

func (p *Player) playbackLoop() {
	defer close(p.doneCh)

	pending := map[int]chunkItem{}
	safetyTicker := time.NewTicker(time.Second)
	defer safetyTicker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.forceUnmuteIfMuted()
			return
		case <-safetyTicker.C:
			p.checkMuteSafety()
		case <-p.wakeCh:
		case <-time.After(100 * time.Millisecond):
		}

		p.heapMu.Lock()
		for p.pq.Len() > 0 {
			item := heap.Pop(&p.pq).(chunkItem)
			pending[item.index] = item
		}
		p.heapMu.Unlock()

		for {
			item, ok := pending[p.cursor]
			if !ok {
				break
			}
			delete(pending, p.cursor)

			if item.sentinel {
				p.onSentinel()
				p.cursor = 0
				continue
			}

			if p.cursor == 0 {
				p.onFirstChunk()
			}

			pcm, err := p.decode(item.audio, p.cfg.SampleRate, p.cfg.Channels)
			if err != nil || len(pcm) == 0 {
				p.log.Warn("player: decode failed, dropping chunk", "index", item.index, "err", err)
			} else {
				p.write(pcm)
			}
			p.cursor++
		}
	}
}

func (p *Player) onFirstChunk() {
	p.playing.Store(true)
	p.mixer.MuteMic()
	p.micMutedAt.Store(time.Now())
}

func (p *Player) onSentinel() {
	p.playing.Store(false)
	p.forceUnmuteIfMuted()
	p.sink.OnTTSDone()
}

func (p *Player) forceUnmuteIfMuted() {
	if t, ok := p.micMutedAt.Load().(time.Time); ok && !t.IsZero() {
		p.mixer.UnmuteMic()
		p.micMutedAt.Store(time.Time{})
	}
}

func (p *Player) checkMuteSafety() {
	t, ok := p.micMutedAt.Load().(time.Time)
	if !ok || t.IsZero() {
		return
	}
	if time.Since(t) >= p.cfg.MuteSafetyTimeout {
		p.log.Warn("player: mic-mute safety timeout, forcing unmute")
		p.forceUnmuteIfMuted()
	}
}

// Stop halts the playback loop and device, guaranteeing the mic is
// unmuted on exit.
func (p *Player) Stop() {
	close(p.stopCh)
	select {
	case <-p.doneCh:
	case <-time.After(2 * time.Second):
	}
	_ = p.device.Stop()
	p.device.Uninit()
	p.ctx.Uninit()
}
