// Package synth is the synthesis toolkit: monophonic instruments that live
// in the audio graph as processor nodes and are played by scheduling
// attack and release events.
package synth

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ingyamilmolinar/sono/internal/graph"
)

// ErrUnknownKind is returned by New for an unregistered synth kind.
var ErrUnknownKind = errors.New("synth: unknown kind")

// Kind names, matching what the UI layer sends.
const (
	KindSynth     = "Synth"
	KindAMSynth   = "AMSynth"
	KindFMSynth   = "FMSynth"
	KindSoundFont = "SoundFont"
)

type event struct {
	frame int64
	on    bool
	freq  float64
}

// voice is the per-kind signal generator.
type voice interface {
	noteOn(freq float64)
	noteOff()
	render(out []float32)
}

// engine queues events and renders the voice between them.
type engine struct {
	v      voice
	events []event
}

func (e *engine) Process(_, out []float32, frame int64) {
	off := 0
	for off < len(out) {
		end := len(out)
		for len(e.events) > 0 && e.events[0].frame <= frame+int64(off) {
			ev := e.events[0]
			e.events = e.events[1:]
			if ev.on {
				e.v.noteOn(ev.freq)
			} else {
				e.v.noteOff()
			}
		}
		if len(e.events) > 0 {
			if next := int(e.events[0].frame - frame); next < end {
				end = next
			}
		}
		e.v.render(out[off:end])
		off = end
	}
}

func (e *engine) schedule(ev event) {
	i := sort.Search(len(e.events), func(i int) bool { return e.events[i].frame > ev.frame })
	e.events = append(e.events, event{})
	copy(e.events[i+1:], e.events[i:])
	e.events[i] = ev
}

// Synth is an instrument node. Connect it like any other graph node.
type Synth struct {
	Kind string
	*graph.ProcessorNode

	ctx *graph.Context
	eng *engine
}

type options struct {
	soundFont io.Reader
	program   int
}

// Option configures New.
type Option func(*options)

// WithSoundFont supplies SF2 data for KindSoundFont.
func WithSoundFont(r io.Reader) Option { return func(o *options) { o.soundFont = r } }

// WithProgram selects the General MIDI program for KindSoundFont.
func WithProgram(p int) Option { return func(o *options) { o.program = p } }

// New builds a synth of the given kind on ctx.
func New(ctx *graph.Context, kind string, opts ...Option) (*Synth, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	sr := ctx.SampleRate()
	var (
		v   voice
		err error
	)
	switch kind {
	case KindSynth:
		v = newOscVoice(sr, triangleOsc, defaultEnvelope)
	case KindAMSynth:
		v = newOscVoice(sr, amOsc(3), Envelope{Attack: 0.01, Decay: 0.01, Sustain: 1, Release: 0.5})
	case KindFMSynth:
		v = newOscVoice(sr, fmOsc(3, 10), Envelope{Attack: 0.01, Decay: 0.01, Sustain: 1, Release: 0.5})
	case KindSoundFont:
		if o.soundFont == nil {
			return nil, fmt.Errorf("synth: %s needs a soundfont", kind)
		}
		v, err = newSoundFontVoice(o.soundFont, sr, o.program)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	eng := &engine{v: v}
	return &Synth{Kind: kind, ProcessorNode: ctx.NewProcessor(eng), ctx: ctx, eng: eng}, nil
}

// Kinds lists the supported synth kinds.
func Kinds() []string {
	return []string{KindAMSynth, KindFMSynth, KindSoundFont, KindSynth}
}

// TriggerAttack starts a note at context time when.
func (s *Synth) TriggerAttack(freq, when float64) {
	f := s.frameOf(when)
	s.Do(func() { s.eng.schedule(event{frame: f, on: true, freq: freq}) })
}

// TriggerRelease releases the sounding note at context time when.
func (s *Synth) TriggerRelease(when float64) {
	f := s.frameOf(when)
	s.Do(func() { s.eng.schedule(event{frame: f}) })
}

func (s *Synth) frameOf(when float64) int64 {
	return int64(when*float64(s.ctx.SampleRate()) + 0.5)
}
