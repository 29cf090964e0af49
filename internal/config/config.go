// Package config centralizes the daemon's tunable constants. Defaults match
// the spec; every field except Channels, TokenValidFor, DisplayTimeout, and
// StatsInterval can be overridden by environment variable, so retargeting a
// device name or threshold needs no recompile.
package config

import "time"

const (
	DefaultSampleRate  = 16000
	DefaultChannels    = 1
	DefaultBytesPerSmp = 2
	DefaultFrameSize   = 512 // samples per frame, matches Silero's native window
	DefaultFrameBytes  = DefaultFrameSize * DefaultBytesPerSmp

	DefaultPreRollFrames = 15 // ~500ms at 32ms/frame
	DefaultQueueCapacity = 100

	DefaultVADThreshold      = 0.15
	DefaultWakeWordThreshold = 0.5
	DefaultWakeWordCooldown  = 1500 * time.Millisecond

	DefaultSilenceTimeout      = 2 * time.Second
	DefaultConversationWindow  = 15 * time.Second
	DefaultCaptureStopTimeout  = 2 * time.Second
	DefaultMuteSafetyTimeout   = 60 * time.Second
	DefaultShutdownGracePeriod = 5 * time.Second

	DefaultPlaybackSampleRate = 48000
	DefaultPlaybackChannels   = 2
	DefaultPlaybackPeriod     = 1024 // frames per ALSA period

	DefaultCaptureDevice  = "default"
	DefaultSpeakerVolume  = 80
	DefaultMixerSpeaker   = "Speaker"
	DefaultMixerMaster    = "Master"
	DefaultMixerCapture   = "Dmic0"
	DefaultMixerCardIndex = "1"

	DefaultBackendURL         = "http://localhost:4000"
	DefaultBackendNamespace   = "/voice"
	DefaultAgentID            = "jarvis-ear"
	DefaultPingInterval       = 60 * time.Second
	DefaultPingStaleThreshold = 120 * time.Second
	DefaultTokenRefreshAfter  = 6 * 24 * time.Hour
	DefaultTokenValidFor      = 7 * 24 * time.Hour

	DefaultDisplayDaemonURL = "http://localhost:8765"
	DefaultDisplayTimeout   = 2 * time.Second

	DefaultStatsInterval = 30 * time.Second

	DefaultWakeChimeLowHz    = 523.0
	DefaultWakeChimeHighHz   = 659.0
	DefaultWakeChimeToneMs   = 150
	DefaultWakeChimeGapMs    = 50
	DefaultWakeChimeRampMs   = 25
	DefaultWakeChimeAmpPeak  = 8000
)

// Config is the full set of daemon settings, loaded from environment
// variables with the DefaultXxx constants above as fallback values.
type Config struct {
	SampleRate  int
	Channels    int
	FrameSize   int
	PreRollFrames int
	QueueCapacity int

	VADThreshold      float64
	WakeWordThreshold float64
	VADModelPath      string
	WakeWordModelPath string
	MelspecModelPath  string
	EmbeddingModelPath string
	OnnxLibPath       string

	SilenceTimeout     time.Duration
	ConversationWindow time.Duration
	EnableConversation bool

	CaptureDevice string

	PlaybackSampleRate int
	PlaybackChannels   int
	PlaybackPeriod     int
	MixerCardIndex     string
	SpeakerVolume      int
	EnableMicMute      bool
	MuteSafetyTimeout  time.Duration
	FFmpegPath         string

	BackendURL        string
	BackendNamespace  string
	BackendPassword   string
	AgentID           string
	PingInterval      time.Duration
	PingStaleThreshold time.Duration
	TokenRefreshAfter time.Duration
	TokenValidFor     time.Duration

	DisplayDaemonURL string
	DisplayTimeout   time.Duration

	StatsInterval time.Duration
	LogLevel      string
}

// Default returns a Config populated with the spec's default constants.
func Default() Config {
	return Config{
		SampleRate:    DefaultSampleRate,
		Channels:      DefaultChannels,
		FrameSize:     DefaultFrameSize,
		PreRollFrames: DefaultPreRollFrames,
		QueueCapacity: DefaultQueueCapacity,

		VADThreshold:      DefaultVADThreshold,
		WakeWordThreshold: DefaultWakeWordThreshold,
		VADModelPath:      "models/silero_vad.onnx",
		WakeWordModelPath: "models/hey_jarvis.onnx",
		MelspecModelPath:  "models/melspectrogram.onnx",
		EmbeddingModelPath: "models/embedding_model.onnx",
		OnnxLibPath:       "lib/libonnxruntime.so",

		SilenceTimeout:     DefaultSilenceTimeout,
		ConversationWindow: DefaultConversationWindow,
		EnableConversation: true,

		CaptureDevice: DefaultCaptureDevice,

		PlaybackSampleRate: DefaultPlaybackSampleRate,
		PlaybackChannels:   DefaultPlaybackChannels,
		PlaybackPeriod:     DefaultPlaybackPeriod,
		MixerCardIndex:     DefaultMixerCardIndex,
		SpeakerVolume:      DefaultSpeakerVolume,
		EnableMicMute:      true,
		MuteSafetyTimeout:  DefaultMuteSafetyTimeout,
		FFmpegPath:         "ffmpeg",

		BackendURL:         DefaultBackendURL,
		BackendNamespace:   DefaultBackendNamespace,
		AgentID:            DefaultAgentID,
		PingInterval:       DefaultPingInterval,
		PingStaleThreshold: DefaultPingStaleThreshold,
		TokenRefreshAfter:  DefaultTokenRefreshAfter,
		TokenValidFor:      DefaultTokenValidFor,

		DisplayDaemonURL: DefaultDisplayDaemonURL,
		DisplayTimeout:   DefaultDisplayTimeout,

		StatsInterval: DefaultStatsInterval,
		LogLevel:      "info",
	}
}

// FrameBytes returns the byte length of one frame at the configured format.
func (c Config) FrameBytes() int {
	return c.FrameSize * c.Channels * DefaultBytesPerSmp
}

// Validate rejects configurations that would make the pipeline meaningless.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return errConfig("sample rate must be positive")
	}
	if c.FrameSize <= 0 {
		return errConfig("frame size must be positive")
	}
	if c.BackendPassword == "" {
		return errConfig("backend password must be set (JARVIS_PASSWORD)")
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return errConfig("vad threshold must be in [0,1]")
	}
	if c.WakeWordThreshold < 0 || c.WakeWordThreshold > 1 {
		return errConfig("wake word threshold must be in [0,1]")
	}
	return nil
}

type configError string

func (e configError) Error() string { return "config: " + string(e) }

func errConfig(msg string) error { return configError(msg) }
