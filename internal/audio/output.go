//go:build !test

package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	sono_log "github.com/ingyamilmolinar/sono/internal/log"
)

// oto allows one context per process.
var (
	ctx     *oto.Context
	ctxRate int
	ctxErr  error
	once    sync.Once
)

// Options configure the device stream.
type Options struct {
	SampleRate   int
	Channels     int
	BufferFrames int
}

// Output streams a Renderer to the sound card.
type Output struct {
	player *oto.Player
	logger *sono_log.Logger
}

// Open starts playing src. Only one sample rate can be used per process.
func Open(src Renderer, opts Options, logger *sono_log.Logger) (*Output, error) {
	if opts.Channels < 1 {
		opts.Channels = 2
	}
	once.Do(func() {
		ctx, ctxErr = platformInitContext(opts.SampleRate, opts.Channels)
		ctxRate = opts.SampleRate
	})
	if ctxErr != nil {
		return nil, fmt.Errorf("audio: open device: %w", ctxErr)
	}
	if ctxRate != opts.SampleRate {
		return nil, fmt.Errorf("audio: device already open at %d Hz", ctxRate)
	}
	p := ctx.NewPlayer(newPCMReader(src, opts.Channels))
	if opts.BufferFrames > 0 {
		p.SetBufferSize(opts.BufferFrames * 2 * opts.Channels)
	}
	p.Play()
	l := logger.Named("audio")
	l.Infof("output open: %d Hz, %d ch, latency %v", opts.SampleRate, opts.Channels,
		time.Duration(opts.BufferFrames)*time.Second/time.Duration(opts.SampleRate))
	return &Output{player: p, logger: l}, nil
}

// Pause stops pulling from the renderer.
func (o *Output) Pause() { o.player.Pause() }

// Resume restarts a paused output.
func (o *Output) Resume() {
	_ = ctx.Resume()
	o.player.Play()
}

// Close stops the stream. The device itself stays open for the process.
func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Err(); err != nil {
		return fmt.Errorf("audio: player: %w", err)
	}
	o.logger.Debugf("output closed")
	return nil
}
