package player

import (
	"os/exec"
	"strconv"
)

// MixerConfig names the ALSA mixer controls the player drives. Defaults
// match the reference hardware's control names.
type MixerConfig struct {
	Card           string
	SpeakerControl string
	MasterControl  string
	MicControl     string
	SpeakerVolume  int
}

func (c MixerConfig) defaults() MixerConfig {
	if c.SpeakerControl == "" {
		c.SpeakerControl = "Speaker"
	}
	if c.MasterControl == "" {
		c.MasterControl = "Master"
	}
	if c.MicControl == "" {
		c.MicControl = "Dmic0"
	}
	if c.SpeakerVolume == 0 {
		c.SpeakerVolume = 80
	}
	return c
}

// runner abstracts subprocess execution so mixer commands are testable
// without actually invoking amixer.
type runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

type mixer struct {
	cfg MixerConfig
	run runner
	log Logger
}

func newMixer(cfg MixerConfig, log Logger) *mixer {
	return &mixer{cfg: cfg.defaults(), run: execRunner, log: log}
}

func (m *mixer) amixerArgs(control, value string) []string {
	args := []string{"sset", control, value}
	if m.cfg.Card != "" {
		args = append([]string{"-c", m.cfg.Card}, args...)
	}
	return args
}

// EnableSpeakers turns on the speaker and master switches and sets volume.
// Failures are logged, never fatal: a silent daemon is recoverable, a
// crashing one is not.
func (m *mixer) EnableSpeakers() {
	cmds := [][]string{
		m.amixerArgs(m.cfg.SpeakerControl, "on"),
		m.amixerArgs(m.cfg.MasterControl, "on"),
		m.amixerArgs(m.cfg.MasterControl, percent(m.cfg.SpeakerVolume)),
	}
	for _, args := range cmds {
		if err := m.run("amixer", args...); err != nil {
			m.log.Warn("mixer command failed", "args", args, "err", err)
		}
	}
}

// MuteMic disables the capture mixer control.
func (m *mixer) MuteMic() {
	if err := m.run("amixer", m.amixerArgs(m.cfg.MicControl, "nocap")...); err != nil {
		m.log.Warn("mute mic failed", "err", err)
	}
}

// UnmuteMic re-enables the capture mixer control.
func (m *mixer) UnmuteMic() {
	if err := m.run("amixer", m.amixerArgs(m.cfg.MicControl, "cap")...); err != nil {
		m.log.Warn("unmute mic failed", "err", err)
	}
}

func percent(v int) string {
	return strconv.Itoa(v) + "%"
}
