// Package audiotest builds minimal but decodable MP3 and WAV payloads for
// tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
)

// MPEG-1 Layer III, 128 kbps, 44.1 kHz, joint stereo, no CRC, no padding
var mp3FrameHeader = []byte{0xFF, 0xFB, 0x90, 0x64}

const (
	mp3FrameSize    = 417              // 144 * 128000 / 44100, rounded down
	mp3FrameSeconds = 1152.0 / 44100.0 // samples per frame / sample rate
)

// MP3 returns a stream of silent frames lasting roughly the given seconds
func MP3(seconds float64) []byte {
	frames := int(seconds/mp3FrameSeconds + 0.5)
	if frames < 1 {
		frames = 1
	}
	return MP3Frames(frames)
}

// MP3Frames returns exactly n silent frames
func MP3Frames(n int) []byte {
	frame := make([]byte, mp3FrameSize)
	copy(frame, mp3FrameHeader)
	return bytes.Repeat(frame, n)
}

// MP3OfSize returns whole frames totalling at least size bytes
func MP3OfSize(size int) []byte {
	return MP3Frames((size + mp3FrameSize - 1) / mp3FrameSize)
}

// WAV returns a 16-bit mono PCM file of the given length
func WAV(seconds, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	dataSize := seconds * sampleRate * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}
