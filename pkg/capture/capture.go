// Package capture runs the device-driven capture thread: it reads PCM
// periods from the default input device, slices them into fixed-size
// frames, and fans each frame out to a pre-roll ring buffer and a bounded
// frame queue.
package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/jarvis-ear/jarvisear/pkg/ring"
)

// Logger is the minimal structured logging surface capture needs.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// Config configures the capture device and frame sizing.
type Config struct {
	Device     string
	SampleRate int
	Channels   int
	FrameBytes int
	Periods    int

	QueueCapacity int
	PreRollFrames int

	StopTimeout time.Duration
}

// Capture owns the capture device, the pre-roll ring buffer, and the
// bounded SPSC frame queue consumed by the decision loop.
type Capture struct {
	cfg Config
	log Logger

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	ring  *ring.Buffer
	queue chan []byte

	accumulator []byte
	accMu       sync.Mutex

	overrunCount atomic.Int64
	dropCount    atomic.Int64

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// New opens the default capture device. Any device-open failure is fatal
// at startup per the error-handling design.
func New(cfg Config, log Logger) (*Capture, error) {
	if log == nil {
		log = noopLogger{}
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("capture: init audio context: %w", err)
	}

	c := &Capture{
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		ring:   ring.New(cfg.PreRollFrames),
		queue:  make(chan []byte, cfg.QueueCapacity),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = uint32(cfg.Channels)
	deviceCfg.SampleRate = uint32(cfg.SampleRate)
	deviceCfg.Alsa.NoMMap = 1
	deviceCfg.PeriodSizeInFrames = uint32(cfg.FrameBytes / 2 / cfg.Channels)
	if cfg.Periods > 0 {
		deviceCfg.Periods = uint32(cfg.Periods)
	}

	callbacks := malgo.DeviceCallbacks{
		Data: c.onSamples,
	}

	device, err := malgo.InitDevice(ctx.Context, deviceCfg, callbacks)
	if err != nil {
		ctx.Uninit()
		return nil, fmt.Errorf("capture: init device: %w", err)
	}
	c.device = device

	return c, nil
}

// Start begins the device's capture callbacks.
func (c *Capture) Start() error {
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("capture: start device: %w", err)
	}
	c.started = true
	return nil
}

// Stop signals shutdown, stops the device, and releases it and the audio
// context. It waits for the device stop to return; StopTimeout is not
// applied here.
func (c *Capture) Stop() {
	if !c.started {
		return
	}
	close(c.stopCh)
	_ = c.device.Stop()
	c.device.Uninit()
	c.ctx.Uninit()
	c.started = false
}

// onSamples is malgo's capture callback. It runs on a library-owned thread;
// it must never block for long or the device will underrun.
func (c *Capture) onSamples(_ []byte, input []byte, _ uint32) {
	if len(input) == 0 {
		// malgo's Data callback never hands us ALSA's raw negative-length
		// overrun signal; a zero-length delivery is the closest analogue
		// it exposes, so that's what the overrun counter tracks.
		n := c.overrunCount.Add(1)
		if n%100 == 1 {
			c.log.Warn("capture overrun, empty period delivered", "total_overruns", n)
		}
		return
	}

	c.accMu.Lock()
	c.accumulator = append(c.accumulator, input...)
	frameBytes := c.cfg.FrameBytes
	for len(c.accumulator) >= frameBytes {
		frame := make([]byte, frameBytes)
		copy(frame, c.accumulator[:frameBytes])
		c.accumulator = c.accumulator[frameBytes:]

		c.ring.Append(frame)

		select {
		case c.queue <- frame:
		default:
			n := c.dropCount.Add(1)
			if n%100 == 1 {
				c.log.Warn("frame queue full, dropping frame", "total_drops", n)
			}
		}
	}
	c.accMu.Unlock()
}

// GetFrame waits up to timeout for the next frame, returning nil on
// timeout.
func (c *Capture) GetFrame(timeout time.Duration) []byte {
	select {
	case f := <-c.queue:
		return f
	case <-time.After(timeout):
		return nil
	}
}

// DrainPreroll drains and clears the pre-roll ring buffer.
func (c *Capture) DrainPreroll() []byte {
	return c.ring.Drain()
}

// OverrunCount returns the cumulative hardware-overrun counter.
func (c *Capture) OverrunCount() int64 { return c.overrunCount.Load() }

// DropCount returns the cumulative queue-overflow counter.
func (c *Capture) DropCount() int64 { return c.dropCount.Load() }

// RingLen reports the current pre-roll buffer occupancy, for diagnostics.
func (c *Capture) RingLen() int { return c.ring.Len() }
