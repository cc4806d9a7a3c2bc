package graph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// DecodeAudioData decodes an in-memory WAV (integer PCM) or MP3 file into a
// Buffer at the file's own sample rate. Buffer sources resample on playback.
func DecodeAudioData(data []byte) (*Buffer, error) {
	switch {
	case isWAV(data):
		return decodeWAV(data)
	case isMP3(data):
		return decodeMP3(data)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func decodeWAV(data []byte) (*Buffer, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, fmt.Errorf("decode wav: %w", ErrUnsupportedFormat)
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("decode wav: audio format %d: %w", d.WavAudioFormat, ErrUnsupportedFormat)
	}
	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	nch := int(d.NumChans)
	if nch == 0 {
		return nil, fmt.Errorf("decode wav: no channels: %w", ErrUnsupportedFormat)
	}
	depth := int(d.BitDepth)
	var (
		scale  = float32(int64(1) << (depth - 1))
		offset float32
	)
	if depth == 8 {
		offset = 128
	}
	frames := len(pcm.Data) / nch
	chans := make([][]float32, nch)
	for c := range chans {
		chans[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < nch; c++ {
			chans[c][i] = (float32(pcm.Data[i*nch+c]) - offset) / scale
		}
	}
	return BufferFromChannels(int(d.SampleRate), chans...)
}

func decodeMP3(data []byte) (*Buffer, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	// go-mp3 always yields 16-bit little-endian stereo.
	frames := len(raw) / 4
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*4:]))) / 32768
		right[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*4+2:]))) / 32768
	}
	return BufferFromChannels(d.SampleRate(), left, right)
}
