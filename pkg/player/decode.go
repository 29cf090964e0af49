package player

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// decoder invokes an external ffmpeg process to convert an arbitrary
// compressed chunk to raw PCM at the playback format. Kept as a narrow
// function type so tests can substitute a fake without invoking ffmpeg.
type decoder func(audio []byte, sampleRate, channels int) ([]byte, error)

const ffmpegTimeout = 5 * time.Second

func ffmpegDecode(ffmpegPath string) decoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return func(audio []byte, sampleRate, channels int) ([]byte, error) {
		ctx, cancel := context.WithTimeout(context.Background(), ffmpegTimeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, ffmpegPath,
			"-hide_banner", "-loglevel", "error",
			"-i", "pipe:0",
			"-f", "s16le",
			"-ar", strconv.Itoa(sampleRate),
			"-ac", strconv.Itoa(channels),
			"pipe:1",
		)
		cmd.Stdin = bytes.NewReader(audio)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg decode failed: %w: %s", err, stderr.String())
		}
		return stdout.Bytes(), nil
	}
}
