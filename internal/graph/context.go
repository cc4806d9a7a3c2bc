// Package graph is a block-based audio graph: sources, gains, convolvers,
// mergers and script processors connected into a fan-out topology and pulled
// by a single destination, one render quantum at a time.
//
// The graph is mono. Every node produces one channel of Quantum frames per
// render step; a node connected to several outputs is processed once per step.
package graph

import (
	"errors"
	"fmt"
	"sync"
)

// Quantum is the number of frames processed per render step.
const Quantum = 128

var (
	// ErrInvalidState is returned when an operation does not fit the node's
	// lifecycle, e.g. starting a source twice.
	ErrInvalidState = errors.New("graph: invalid state")
	// ErrUnsupportedFormat is returned by DecodeAudioData for unknown data.
	ErrUnsupportedFormat = errors.New("graph: unsupported audio format")
)

// State is the lifecycle state of a Context.
type State int

const (
	StateRunning State = iota
	StateSuspended
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Context owns the render clock and every node created from it. All node
// mutation and rendering is serialized on the context lock.
type Context struct {
	mu         sync.Mutex
	sampleRate int
	frame      int64
	state      State
	dest       *Destination

	// started sources, checked for completion after every quantum
	sources map[*nodeBase]struct{}

	pend    []float32
	pendPos int
}

// NewContext returns a running context at the given sample rate.
func NewContext(sampleRate int) (*Context, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("graph: invalid sample rate %d", sampleRate)
	}
	c := &Context{
		sampleRate: sampleRate,
		sources:    map[*nodeBase]struct{}{},
		pend:       make([]float32, Quantum),
		pendPos:    Quantum,
	}
	c.dest = &Destination{}
	c.dest.init(c, passthrough{})
	return c, nil
}

func (c *Context) SampleRate() int { return c.sampleRate }

// CurrentTime returns the time in seconds of the next frame to be rendered.
// It advances in steps of one quantum.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeOf(c.frame)
}

func (c *Context) Destination() *Destination { return c.dest }

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Suspend stops the clock; Render produces silence without advancing time.
func (c *Context) Suspend() {
	c.mu.Lock()
	if c.state == StateRunning {
		c.state = StateSuspended
	}
	c.mu.Unlock()
}

func (c *Context) Resume() {
	c.mu.Lock()
	if c.state == StateSuspended {
		c.state = StateRunning
	}
	c.mu.Unlock()
}

// Close permanently stops rendering.
func (c *Context) Close() {
	c.mu.Lock()
	c.state = StateClosed
	c.sources = map[*nodeBase]struct{}{}
	c.mu.Unlock()
}

// Render fills out with the next len(out) frames of the destination signal.
func (c *Context) Render(out []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		clear(out)
		return
	}
	n := 0
	for n < len(out) {
		if c.pendPos >= len(c.pend) {
			c.renderQuantum()
		}
		k := copy(out[n:], c.pend[c.pendPos:])
		c.pendPos += k
		n += k
	}
}

func (c *Context) renderQuantum() {
	copy(c.pend, c.dest.pull(c.frame))
	c.pendPos = 0
	c.frame += Quantum
	c.releaseEnded()
}

// releaseEnded disconnects sources that finished playing and any
// release-when-idle node left without inputs as a result.
func (c *Context) releaseEnded() {
	for n := range c.sources {
		e, ok := n.self.(ender)
		if !ok || !e.ended() {
			continue
		}
		delete(c.sources, n)
		n.releaseOutputs()
	}
}

func (c *Context) frameOf(when float64) int64 {
	f := int64(when*float64(c.sampleRate) + 0.5)
	if f < c.frame {
		f = c.frame
	}
	return f
}

func (c *Context) timeOf(frame int64) float64 {
	return float64(frame) / float64(c.sampleRate)
}

// activeSources reports how many started sources have not ended yet.
func (c *Context) activeSources() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}
