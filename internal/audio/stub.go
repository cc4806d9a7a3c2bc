//go:build test

package audio

import (
	"io"

	sono_log "github.com/ingyamilmolinar/sono/internal/log"
)

type Options struct {
	SampleRate   int
	Channels     int
	BufferFrames int
}

// Output is a stub used during tests to avoid initializing audio devices.
// It keeps the encoder so tests can read what would be played.
type Output struct {
	Reader io.Reader
}

func Open(src Renderer, opts Options, logger *sono_log.Logger) (*Output, error) {
	if opts.Channels < 1 {
		opts.Channels = 2
	}
	return &Output{Reader: newPCMReader(src, opts.Channels)}, nil
}

func (o *Output) Pause()       {}
func (o *Output) Resume()      {}
func (o *Output) Close() error { return nil }
