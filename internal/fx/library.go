// Package fx is the effects library: effect nodes and convolution impulse
// presets looked up by id and built on a graph context. Nodes returned here
// are not owned by the caller's registry; the library only constructs them.
package fx

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/ingyamilmolinar/sono/internal/graph"
)

// ErrUnknownEffect is returned for an effect or impulse id with no preset.
var ErrUnknownEffect = errors.New("fx: unknown effect")

// Effect is an effect node together with the id it was built from.
type Effect struct {
	ID string
	*graph.ProcessorNode
}

type effectFactory func(sampleRate int) graph.Processor

var effects = map[string]effectFactory{
	"delay": func(sr int) graph.Processor { return NewDelay(sr, 0.15, 0.45, 0.5) },
	"echo":  func(sr int) graph.Processor { return NewDelay(sr, 0.375, 0.3, 0.35) },
	"chorus": func(sr int) graph.Processor {
		return NewChorus(sr, 1.5, 4, 0.5)
	},
	"overdrive": func(sr int) graph.Processor { return NewOverdrive(8, 0.7) },
	"lowpass":   func(sr int) graph.Processor { return NewBiquad(sr, LowPass, 800, 0.9) },
	"highpass":  func(sr int) graph.Processor { return NewBiquad(sr, HighPass, 1200, 0.7) },
	"wahwah":    func(sr int) graph.Processor { return NewBiquad(sr, BandPass, 700, 4) },
	"tremolo":   func(sr int) graph.Processor { return NewTremolo(sr, 5, 0.7) },
	"compressor": func(sr int) graph.Processor {
		return NewCompressor(sr, -24, 4, 3, 250, 6)
	},
	"bitcrusher": func(sr int) graph.Processor { return NewBitcrusher(6, 4) },
}

// impulsePreset describes a synthetic reverb tail: exponentially decaying
// noise, optionally low-passed by averaging.
type impulsePreset struct {
	seconds float64
	decay   float64
	smooth  int
}

var impulses = map[string]impulsePreset{
	"room":  {seconds: 0.6, decay: 4, smooth: 1},
	"hall":  {seconds: 2.5, decay: 2.5, smooth: 2},
	"plate": {seconds: 1.5, decay: 3, smooth: 1},
	"cave":  {seconds: 4, decay: 1.8, smooth: 4},
}

// Library builds effects for one graph context.
type Library struct {
	ctx *graph.Context
}

func NewLibrary(ctx *graph.Context) *Library {
	return &Library{ctx: ctx}
}

// New builds the effect preset named id.
func (l *Library) New(id string) (*Effect, error) {
	f, ok := effects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, id)
	}
	return &Effect{ID: id, ProcessorNode: l.ctx.NewProcessor(f(l.ctx.SampleRate()))}, nil
}

// Impulse builds a convolver loaded with the impulse preset named id.
func (l *Library) Impulse(id string) (*graph.ConvolverNode, error) {
	p, ok := impulses[id]
	if !ok {
		return nil, fmt.Errorf("%w: impulse %q", ErrUnknownEffect, id)
	}
	buf, err := p.render(l.ctx.SampleRate(), int64(len(id)))
	if err != nil {
		return nil, err
	}
	cv := l.ctx.NewConvolver()
	cv.SetBuffer(buf)
	return cv, nil
}

func (p impulsePreset) render(sampleRate int, seed int64) (*graph.Buffer, error) {
	n := int(p.seconds * float64(sampleRate))
	r := rand.New(rand.NewSource(seed))
	data := make([]float32, n)
	for i := range data {
		t := float64(i) / float64(n)
		data[i] = float32((r.Float64()*2 - 1) * math.Pow(1-t, p.decay))
	}
	for s := 1; s < p.smooth; s++ {
		for i := len(data) - 1; i > 0; i-- {
			data[i] = (data[i] + data[i-1]) / 2
		}
	}
	return graph.BufferFromChannels(sampleRate, data)
}

// EffectIDs lists the effect presets.
func EffectIDs() []string { return sortedKeys(effects) }

// ImpulseIDs lists the impulse presets.
func ImpulseIDs() []string { return sortedKeys(impulses) }

func sortedKeys[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for k := range m {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	return ids
}
