// Package audio provides the minimal WAV framing used to wrap outbound
// utterance PCM for the backend and to recover PCM from it.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// NewWavBuffer wraps mono 16-bit PCM in a canonical 44-byte WAV header.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodePCM recovers the raw PCM payload from a WAV buffer produced by
// NewWavBuffer. It only understands the canonical 44-byte PCM header this
// package writes, not arbitrary WAV variants (extra chunks, float PCM, etc).
func DecodePCM(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, fmt.Errorf("audio: wav buffer too short (%d bytes)", len(wav))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("audio: missing RIFF/WAVE header")
	}
	if !bytes.Equal(wav[12:16], []byte("fmt ")) || !bytes.Equal(wav[36:40], []byte("data")) {
		return nil, fmt.Errorf("audio: unsupported wav layout")
	}
	dataLen := binary.LittleEndian.Uint32(wav[40:44])
	if 44+int(dataLen) > len(wav) {
		return nil, fmt.Errorf("audio: wav data length %d exceeds buffer", dataLen)
	}
	return wav[44 : 44+int(dataLen)], nil
}
