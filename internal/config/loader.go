package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Loader loads Config from environment variables. Tests override Lookup to
// inject a deterministic map instead of the real environment.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load builds a Config starting from Default() and applying any env
// overrides found via Lookup (os.LookupEnv if unset).
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Default()

	overrideInt(l.Lookup, "JARVIS_SAMPLE_RATE", &cfg.SampleRate)
	overrideInt(l.Lookup, "JARVIS_FRAME_SIZE", &cfg.FrameSize)
	overrideInt(l.Lookup, "JARVIS_PREROLL_FRAMES", &cfg.PreRollFrames)
	overrideInt(l.Lookup, "JARVIS_QUEUE_CAPACITY", &cfg.QueueCapacity)

	overrideFloat(l.Lookup, "JARVIS_VAD_THRESHOLD", &cfg.VADThreshold)
	overrideFloat(l.Lookup, "JARVIS_WAKEWORD_THRESHOLD", &cfg.WakeWordThreshold)
	overrideString(l.Lookup, "JARVIS_VAD_MODEL_PATH", &cfg.VADModelPath)
	overrideString(l.Lookup, "JARVIS_WAKEWORD_MODEL_PATH", &cfg.WakeWordModelPath)
	overrideString(l.Lookup, "JARVIS_MELSPEC_MODEL_PATH", &cfg.MelspecModelPath)
	overrideString(l.Lookup, "JARVIS_EMBEDDING_MODEL_PATH", &cfg.EmbeddingModelPath)
	overrideString(l.Lookup, "JARVIS_ONNX_LIB_PATH", &cfg.OnnxLibPath)

	overrideDuration(l.Lookup, "JARVIS_SILENCE_TIMEOUT_S", &cfg.SilenceTimeout)
	overrideDuration(l.Lookup, "JARVIS_CONVERSATION_WINDOW_S", &cfg.ConversationWindow)
	overrideBool(l.Lookup, "JARVIS_ENABLE_CONVERSATION", &cfg.EnableConversation)

	overrideString(l.Lookup, "JARVIS_CAPTURE_DEVICE", &cfg.CaptureDevice)

	overrideInt(l.Lookup, "JARVIS_PLAYBACK_SAMPLE_RATE", &cfg.PlaybackSampleRate)
	overrideInt(l.Lookup, "JARVIS_PLAYBACK_CHANNELS", &cfg.PlaybackChannels)
	overrideInt(l.Lookup, "JARVIS_PLAYBACK_PERIOD", &cfg.PlaybackPeriod)
	overrideString(l.Lookup, "JARVIS_MIXER_CARD_INDEX", &cfg.MixerCardIndex)
	overrideInt(l.Lookup, "JARVIS_SPEAKER_VOLUME", &cfg.SpeakerVolume)
	overrideBool(l.Lookup, "JARVIS_ENABLE_MIC_MUTE", &cfg.EnableMicMute)
	overrideDuration(l.Lookup, "JARVIS_MUTE_SAFETY_TIMEOUT_S", &cfg.MuteSafetyTimeout)
	overrideString(l.Lookup, "JARVIS_FFMPEG_PATH", &cfg.FFmpegPath)

	overrideString(l.Lookup, "BACKEND_URL", &cfg.BackendURL)
	overrideString(l.Lookup, "JARVIS_BACKEND_NAMESPACE", &cfg.BackendNamespace)
	overrideString(l.Lookup, "JARVIS_PASSWORD", &cfg.BackendPassword)
	overrideString(l.Lookup, "JARVIS_AGENT_ID", &cfg.AgentID)
	overrideDuration(l.Lookup, "JARVIS_PING_INTERVAL_S", &cfg.PingInterval)
	overrideDuration(l.Lookup, "JARVIS_PING_STALE_S", &cfg.PingStaleThreshold)
	overrideDuration(l.Lookup, "JARVIS_TOKEN_REFRESH_AFTER_H", &cfg.TokenRefreshAfter)

	overrideString(l.Lookup, "JARVIS_DISPLAY_DAEMON_URL", &cfg.DisplayDaemonURL)

	overrideString(l.Lookup, "JARVIS_LOG_LEVEL", &cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		*target = strings.TrimSpace(v)
	}
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*target = parsed
		}
	}
}

// overrideDuration reads the env var as a count of seconds (or hours for the
// *_H suffixed keys) and converts to a time.Duration.
func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return
		}
		if strings.HasSuffix(key, "_H") {
			*target = time.Duration(parsed * float64(time.Hour))
		} else {
			*target = time.Duration(parsed * float64(time.Second))
		}
	}
}
