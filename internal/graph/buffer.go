package graph

import (
	"fmt"
	"time"
)

// Buffer holds decoded PCM, one float32 slice per channel.
type Buffer struct {
	sampleRate int
	channels   [][]float32
}

// NewBuffer allocates a silent buffer.
func NewBuffer(numChannels, length, sampleRate int) (*Buffer, error) {
	if numChannels <= 0 || length < 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("graph: invalid buffer shape channels=%d length=%d rate=%d", numChannels, length, sampleRate)
	}
	chans := make([][]float32, numChannels)
	for i := range chans {
		chans[i] = make([]float32, length)
	}
	return &Buffer{sampleRate: sampleRate, channels: chans}, nil
}

// BufferFromChannels wraps existing channel data. All channels must have the
// same length.
func BufferFromChannels(sampleRate int, channels ...[]float32) (*Buffer, error) {
	if len(channels) == 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("graph: invalid buffer channels=%d rate=%d", len(channels), sampleRate)
	}
	for _, ch := range channels[1:] {
		if len(ch) != len(channels[0]) {
			return nil, fmt.Errorf("graph: channel lengths differ (%d vs %d)", len(ch), len(channels[0]))
		}
	}
	return &Buffer{sampleRate: sampleRate, channels: channels}, nil
}

func (b *Buffer) SampleRate() int       { return b.sampleRate }
func (b *Buffer) NumberOfChannels() int { return len(b.channels) }
func (b *Buffer) Length() int           { return len(b.channels[0]) }

// Channel returns the backing slice of channel i.
func (b *Buffer) Channel(i int) []float32 { return b.channels[i] }

func (b *Buffer) Duration() time.Duration {
	return time.Duration(float64(b.Length()) / float64(b.sampleRate) * float64(time.Second))
}

// frame returns the mono mix of frame i.
func (b *Buffer) frame(i int) float64 {
	if len(b.channels) == 1 {
		return float64(b.channels[0][i])
	}
	var sum float64
	for _, ch := range b.channels {
		sum += float64(ch[i])
	}
	return sum / float64(len(b.channels))
}
