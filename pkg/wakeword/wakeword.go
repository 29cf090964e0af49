// Package wakeword implements a streaming openWakeWord-style detector: a
// three-stage ONNX pipeline (melspectrogram → embedding → wakeword
// classifier) fed 32ms frames and producing a trailing-window trigger.
package wakeword

import (
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	sampleRate   = 16000
	chunkSamples = 1280 // 80ms @ 16kHz — openWakeWord's native analysis step
	melWindowSize = 76  // embedding model's required mel-frame history
	melStepSize   = 8
	embeddingDim  = 96
	nEmbedFrames  = 16 // wakeword model's required embedding history
	melBins       = 32
	nMelFrames    = 5 // 1280 samples -> 5 mel frames

	// scoreWindowSize smooths over frame-alignment jitter: the detection
	// peak can land one frame early or late, so trigger on the window max
	// rather than a single frame's score.
	scoreWindowSize = 5

	defaultThreshold = 0.5
	defaultCooldown  = 1500 * time.Millisecond
)

// Config holds the model file paths and tuning knobs for a Detector.
type Config struct {
	WakeWordModel  string
	MelspecModel   string
	EmbeddingModel string
	OnnxLibPath    string

	Threshold float64
	Cooldown  time.Duration
}

func (c *Config) defaults() {
	if c.Threshold <= 0 {
		c.Threshold = defaultThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// Detector classifies a stream of 32ms PCM frames for a single fixed wake
// phrase. It is fed frames explicitly by the caller's decision loop — it
// does not own an audio device.
type Detector struct {
	cfg Config

	mu sync.Mutex

	melspecSess *ort.AdvancedSession
	melspecIn   *ort.Tensor[float32]
	melspecOut  *ort.Tensor[float32]

	embedSess *ort.AdvancedSession
	embedIn   *ort.Tensor[float32]
	embedOut  *ort.Tensor[float32]

	wwSess *ort.AdvancedSession
	wwIn   *ort.Tensor[float32]
	wwOut  *ort.Tensor[float32]

	melBuffer   []float32
	embedBuffer []float32
	audioRem    []float32

	scoreWindow []float32
	scoreIdx    int
	lastDetect  time.Time
}

// New loads the three ONNX models and allocates their tensors.
func New(cfg Config) (*Detector, error) {
	cfg.defaults()

	ortInitOnce.Do(func() {
		if cfg.OnnxLibPath != "" {
			ort.SetSharedLibraryPath(cfg.OnnxLibPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("wakeword: onnxruntime init: %w", ortInitErr)
	}

	d := &Detector{
		cfg:         cfg,
		melBuffer:   make([]float32, 0, 300*melBins),
		embedBuffer: make([]float32, nEmbedFrames*embeddingDim),
		audioRem:    make([]float32, 0, chunkSamples*2),
		scoreWindow: make([]float32, scoreWindowSize),
	}

	opts, err := singleThreadedSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("wakeword: session options: %w", err)
	}
	defer opts.Destroy()

	d.melspecIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, chunkSamples))
	if err != nil {
		return nil, fmt.Errorf("wakeword: melspec input tensor: %w", err)
	}
	d.melspecOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, nMelFrames, melBins))
	if err != nil {
		return nil, fmt.Errorf("wakeword: melspec output tensor: %w", err)
	}
	msIn, msOut, err := ort.GetInputOutputInfo(cfg.MelspecModel)
	if err != nil {
		return nil, fmt.Errorf("wakeword: melspec model info: %w", err)
	}
	d.melspecSess, err = ort.NewAdvancedSession(cfg.MelspecModel,
		[]string{msIn[0].Name}, []string{msOut[0].Name},
		[]ort.Value{d.melspecIn}, []ort.Value{d.melspecOut}, opts)
	if err != nil {
		return nil, fmt.Errorf("wakeword: create melspec session: %w", err)
	}

	d.embedIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, melWindowSize, melBins, 1))
	if err != nil {
		return nil, fmt.Errorf("wakeword: embedding input tensor: %w", err)
	}
	d.embedOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, 1, embeddingDim))
	if err != nil {
		return nil, fmt.Errorf("wakeword: embedding output tensor: %w", err)
	}
	emIn, emOut, err := ort.GetInputOutputInfo(cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("wakeword: embedding model info: %w", err)
	}
	d.embedSess, err = ort.NewAdvancedSession(cfg.EmbeddingModel,
		[]string{emIn[0].Name}, []string{emOut[0].Name},
		[]ort.Value{d.embedIn}, []ort.Value{d.embedOut}, opts)
	if err != nil {
		return nil, fmt.Errorf("wakeword: create embedding session: %w", err)
	}

	d.wwIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, nEmbedFrames, embeddingDim))
	if err != nil {
		return nil, fmt.Errorf("wakeword: wakeword input tensor: %w", err)
	}
	d.wwOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return nil, fmt.Errorf("wakeword: wakeword output tensor: %w", err)
	}
	wwIn, wwOut, err := ort.GetInputOutputInfo(cfg.WakeWordModel)
	if err != nil {
		return nil, fmt.Errorf("wakeword: wakeword model info: %w", err)
	}
	d.wwSess, err = ort.NewAdvancedSession(cfg.WakeWordModel,
		[]string{wwIn[0].Name}, []string{wwOut[0].Name},
		[]ort.Value{d.wwIn}, []ort.Value{d.wwOut}, opts)
	if err != nil {
		return nil, fmt.Errorf("wakeword: create wakeword session: %w", err)
	}

	return d, nil
}

// Detect feeds one 32ms frame (int16 PCM as float32 samples) into the
// pipeline and reports whether the best trailing-window score crosses the
// threshold (subject to cooldown). The score itself is not returned.
func (d *Detector) Detect(frame []byte) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	samples := pcmToFloat32(frame)
	d.audioRem = append(d.audioRem, samples...)

	detected := false
	for len(d.audioRem) >= chunkSamples {
		chunk := d.audioRem[:chunkSamples]
		n := copy(d.audioRem, d.audioRem[chunkSamples:])
		d.audioRem = d.audioRem[:n]

		if d.processChunk(chunk) {
			detected = true
		}
	}
	return detected, nil
}

func (d *Detector) processChunk(chunk []float32) bool {
	inData := d.melspecIn.GetData()
	copy(inData, chunk)
	if err := d.melspecSess.Run(); err != nil {
		return false
	}

	melData := d.melspecOut.GetData()
	for f := 0; f < nMelFrames; f++ {
		for b := 0; b < melBins; b++ {
			idx := f*melBins + b
			if idx < len(melData) {
				d.melBuffer = append(d.melBuffer, melData[idx]/10.0+2.0)
			}
		}
	}

	totalMel := len(d.melBuffer) / melBins
	newEmbed := false
	for totalMel >= melWindowSize {
		eData := d.embedIn.GetData()
		copy(eData, d.melBuffer[:melWindowSize*melBins])
		if err := d.embedSess.Run(); err != nil {
			break
		}
		eOut := d.embedOut.GetData()

		copy(d.embedBuffer, d.embedBuffer[embeddingDim:])
		copy(d.embedBuffer[(nEmbedFrames-1)*embeddingDim:], eOut[:embeddingDim])
		newEmbed = true

		n := copy(d.melBuffer, d.melBuffer[melStepSize*melBins:])
		d.melBuffer = d.melBuffer[:n]
		totalMel = len(d.melBuffer) / melBins
	}
	if totalMel > melWindowSize {
		excess := (totalMel - melWindowSize) * melBins
		n := copy(d.melBuffer, d.melBuffer[excess:])
		d.melBuffer = d.melBuffer[:n]
	}
	if !newEmbed {
		return false
	}

	wwData := d.wwIn.GetData()
	copy(wwData, d.embedBuffer)
	if err := d.wwSess.Run(); err != nil {
		return false
	}
	score := d.wwOut.GetData()[0]

	d.scoreWindow[d.scoreIdx%scoreWindowSize] = score
	d.scoreIdx++

	var maxScore float32
	for _, s := range d.scoreWindow {
		if s > maxScore {
			maxScore = s
		}
	}

	now := time.Now()
	if float64(maxScore) >= d.cfg.Threshold && now.Sub(d.lastDetect) > d.cfg.Cooldown {
		d.lastDetect = now
		for i := range d.scoreWindow {
			d.scoreWindow[i] = 0
		}
		return true
	}
	return false
}

// Reset discards all internal buffering. Called after every positive
// detection (to prevent immediate re-trigger from trailing audio) and at
// every utterance boundary.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.melBuffer = d.melBuffer[:0]
	for i := range d.embedBuffer {
		d.embedBuffer[i] = 0
	}
	d.audioRem = d.audioRem[:0]
	for i := range d.scoreWindow {
		d.scoreWindow[i] = 0
	}
	d.scoreIdx = 0
}

// Close releases the ONNX sessions and tensors. Safe to call once.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sessions := []*ort.AdvancedSession{d.melspecSess, d.embedSess, d.wwSess}
	for _, s := range sessions {
		if s != nil {
			s.Destroy()
		}
	}
	if d.melspecIn != nil {
		d.melspecIn.Destroy()
	}
	if d.melspecOut != nil {
		d.melspecOut.Destroy()
	}
	if d.embedIn != nil {
		d.embedIn.Destroy()
	}
	if d.embedOut != nil {
		d.embedOut.Destroy()
	}
	if d.wwIn != nil {
		d.wwIn.Destroy()
	}
	if d.wwOut != nil {
		d.wwOut.Destroy()
	}
	return nil
}

// singleThreadedSessionOptions pins every stage of the pipeline to one
// inter-op and one intra-op worker, preventing ONNX Runtime's default
// thread pool from thrashing the small core counts this daemon typically
// runs on. Shared across all three sessions since they run sequentially,
// never concurrently, within a single Detect call.
func singleThreadedSessionOptions() (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	if err := opts.SetIntraOpNumThreads(1); err != nil {
		opts.Destroy()
		return nil, err
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		opts.Destroy()
		return nil, err
	}
	return opts, nil
}

func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		u := uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8
		out[i] = float32(int16(u))
	}
	return out
}
