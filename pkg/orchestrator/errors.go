package orchestrator

import "errors"

var (
	// ErrCaptureInit is returned when the capture device fails to open at
	// startup. Fatal: there is no meaningful degraded mode without a mic.
	ErrCaptureInit = errors.New("orchestrator: capture device init failed")

	// ErrModelInit is returned when a VAD or wake-word ONNX model fails to
	// load. Fatal at startup.
	ErrModelInit = errors.New("orchestrator: model init failed")

	// ErrShutdownTimeout is returned when graceful shutdown does not
	// complete within the configured grace period.
	ErrShutdownTimeout = errors.New("orchestrator: shutdown did not complete within grace period")
)
