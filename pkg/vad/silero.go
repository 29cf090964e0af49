package vad

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// sileroFrameSamples is Silero VAD v5's native analysis window at 16kHz.
	sileroFrameSamples = 512
	// sileroStateDim is the hidden state's per-layer dimension.
	sileroStateDim = 128
	// sileroContextSize16k is the overlap context Silero prepends to each
	// window at 16kHz; it halves to 32 at 8kHz.
	sileroContextSize16k = 64
	sileroContextSize8k  = 32
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// SileroVAD wraps a streaming Silero VAD v5 ONNX session behind the
// Detector interface. It owns three pieces of state that must be reset
// together: the RNN hidden state, the context window, and the high-pass
// filter memory.
type SileroVAD struct {
	mu sync.Mutex

	session *ort.AdvancedSession

	inputTensor *ort.Tensor[float32] // [1, contextSize+frameSamples]
	stateTensor *ort.Tensor[float32] // [2, 1, 128]
	srTensor    *ort.Tensor[int64]   // scalar

	outputTensor *ort.Tensor[float32] // [1, 1]
	stateNTensor *ort.Tensor[float32] // [2, 1, 128]

	context     []float32
	contextSize int
	sampleRate  int
	threshold   float64
	hpf         *highpassBiquad

	frameBytes int
}

// NewSileroVAD loads the ONNX runtime shared library (if not already
// initialized process-wide) and the model at modelPath, and allocates the
// tensors needed for streaming inference at sampleRate.
func NewSileroVAD(onnxLibPath, modelPath string, sampleRate int, threshold float64) (*SileroVAD, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("vad: silero model not found at %s: %w", modelPath, err)
	}

	ortInitOnce.Do(func() {
		if onnxLibPath != "" {
			ort.SetSharedLibraryPath(onnxLibPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("vad: onnxruntime init: %w", ortInitErr)
	}

	contextSize := sileroContextSize16k
	if sampleRate == 8000 {
		contextSize = sileroContextSize8k
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(contextSize+sileroFrameSamples)))
	if err != nil {
		return nil, fmt.Errorf("vad: create input tensor: %w", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateDim))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("vad: create state tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, fmt.Errorf("vad: create sr tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, fmt.Errorf("vad: create output tensor: %w", err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateDim))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("vad: create stateN tensor: %w", err)
	}

	opts, err := singleThreadedSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("vad: session options: %w", err)
	}
	defer opts.Destroy()

	session, err := ort.NewAdvancedSessionWithONNXFile(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("vad: create session: %w", err)
	}

	return &SileroVAD{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		srTensor:     srTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
		context:      make([]float32, contextSize),
		contextSize:  contextSize,
		sampleRate:   sampleRate,
		threshold:    threshold,
		hpf:          newHighpassBiquad(highpassCutoffHz, sampleRate),
		frameBytes:   sileroFrameSamples * 2,
	}, nil
}

func (v *SileroVAD) IsSpeech(frame []byte) (bool, error) {
	p, err := v.Probability(frame)
	if err != nil {
		return false, err
	}
	return p >= v.threshold, nil
}

// Probability runs the full signal path required for correct Silero
// behavior: int16→float32 decode, DC-hum high-pass, context-window prepend,
// then inference with hidden-state carry-forward.
func (v *SileroVAD) Probability(frame []byte) (float64, error) {
	if len(frame) != v.frameBytes {
		return 0, &ErrBadFrameSize{Got: len(frame), Want: v.frameBytes}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	samples := pcmToFloat32(frame)
	v.hpf.Process(samples)

	in := v.inputTensor.GetData()
	copy(in, v.context)
	copy(in[v.contextSize:], samples)

	copy(v.context, samples[len(samples)-v.contextSize:])

	if err := v.session.Run(); err != nil {
		return 0, fmt.Errorf("vad: inference: %w", err)
	}

	prob := v.outputTensor.GetData()[0]
	copy(v.stateTensor.GetData(), v.stateNTensor.GetData())

	return float64(prob), nil
}

// Reset zeros hidden state, context window, and filter memory together —
// the three pieces of VAD temporal state must never drift out of sync.
func (v *SileroVAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clearFloat32(v.stateTensor.GetData())
	clearFloat32(v.context)
	v.hpf.Reset()
}

func (v *SileroVAD) SetThreshold(t float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.threshold = t
}

func (v *SileroVAD) Threshold() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.threshold
}

// Close releases ONNX Runtime resources. Safe to call once.
func (v *SileroVAD) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session != nil {
		v.session.Destroy()
		v.session = nil
	}
	if v.inputTensor != nil {
		v.inputTensor.Destroy()
		v.inputTensor = nil
	}
	if v.stateTensor != nil {
		v.stateTensor.Destroy()
		v.stateTensor = nil
	}
	if v.srTensor != nil {
		v.srTensor.Destroy()
		v.srTensor = nil
	}
	if v.outputTensor != nil {
		v.outputTensor.Destroy()
		v.outputTensor = nil
	}
	if v.stateNTensor != nil {
		v.stateNTensor.Destroy()
		v.stateNTensor = nil
	}
	return nil
}

// pcmToFloat32 decodes s16le PCM to float32 in [-1, 1], dividing by 32768
// (not 32767) so the full int16 range maps into [-1, ~0.99997].
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		u := uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8
		out[i] = float32(int16(u)) / 32768.0
	}
	return out
}

// singleThreadedSessionOptions pins the session to one inter-op and one
// intra-op worker, preventing ONNX Runtime's default thread pool from
// thrashing the small core counts this daemon typically runs on.
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

func clearFloat32(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
