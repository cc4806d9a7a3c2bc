package graph

import (
	"fmt"
	"math"
)

// Waveform selects the oscillator shape.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
	Custom
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	case Triangle:
		return "triangle"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

const waveTableSize = 2048

// PeriodicWave is a custom single-cycle waveform defined by Fourier
// coefficients. Index 0 (DC) of both slices is ignored.
type PeriodicWave struct {
	table []float32
}

// NewPeriodicWave builds a wavetable from real (cosine) and imag (sine)
// coefficients. Unless disableNormalization is set the table is scaled to a
// peak of 1.
func NewPeriodicWave(real, imag []float64, disableNormalization bool) (*PeriodicWave, error) {
	if len(real) != len(imag) {
		return nil, fmt.Errorf("graph: periodic wave coefficient lengths differ (%d vs %d)", len(real), len(imag))
	}
	if len(real) < 2 {
		return nil, fmt.Errorf("graph: periodic wave needs at least 2 coefficients, got %d", len(real))
	}
	table := make([]float32, waveTableSize)
	peak := 0.0
	for j := range table {
		x := 2 * math.Pi * float64(j) / waveTableSize
		var v float64
		for k := 1; k < len(real); k++ {
			v += real[k]*math.Cos(float64(k)*x) + imag[k]*math.Sin(float64(k)*x)
		}
		table[j] = float32(v)
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if !disableNormalization && peak > 0 {
		for j := range table {
			table[j] = float32(float64(table[j]) / peak)
		}
	}
	return &PeriodicWave{table: table}, nil
}

func (w *PeriodicWave) at(phase float64) float64 {
	pos := phase * waveTableSize
	i := int(pos)
	frac := pos - float64(i)
	a := w.table[i%waveTableSize]
	b := w.table[(i+1)%waveTableSize]
	return float64(a) + (float64(b)-float64(a))*frac
}

// OscillatorNode is a single-use periodic source.
type OscillatorNode struct {
	nodeBase
	schedule

	// Frequency in Hz.
	Frequency *Param
	// Detune in cents.
	Detune *Param

	typ   Waveform
	wave  *PeriodicWave
	phase float64
}

// NewOscillator returns a 440Hz sine oscillator.
func (c *Context) NewOscillator() *OscillatorNode {
	o := &OscillatorNode{
		Frequency: newParam(c, 440),
		Detune:    newParam(c, 0),
	}
	o.init(c, o)
	return o
}

func (o *OscillatorNode) Type() Waveform {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.typ
}

// SetType selects a built-in waveform. Custom waves are set with SetPeriodicWave.
func (o *OscillatorNode) SetType(w Waveform) error {
	if w == Custom || w < Sine || w > Custom {
		return fmt.Errorf("graph: cannot set oscillator type %v: %w", w, ErrInvalidState)
	}
	o.ctx.mu.Lock()
	o.typ = w
	o.wave = nil
	o.ctx.mu.Unlock()
	return nil
}

func (o *OscillatorNode) SetPeriodicWave(w *PeriodicWave) {
	o.ctx.mu.Lock()
	o.typ = Custom
	o.wave = w
	o.ctx.mu.Unlock()
}

// Start begins output at context time when. A node can be started once.
func (o *OscillatorNode) Start(when float64) error {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.schedule.start(&o.nodeBase, when)
}

// Stop ends output at context time when.
func (o *OscillatorNode) Stop(when float64) error {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.schedule.stop(&o.nodeBase, when)
}

// Started reports whether Start has been called.
func (o *OscillatorNode) Started() bool {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.started
}

// Ended reports whether the oscillator reached its stop time.
func (o *OscillatorNode) Ended() bool {
	o.ctx.mu.Lock()
	defer o.ctx.mu.Unlock()
	return o.done
}

func (o *OscillatorNode) process(_, out []float32, frame int64) {
	sr := float64(o.ctx.sampleRate)
	for i := range out {
		f := frame + int64(i)
		if !o.active(f) {
			out[i] = 0
			continue
		}
		freq := o.Frequency.valueAt(f) * math.Pow(2, o.Detune.valueAt(f)/1200)
		out[i] = float32(o.sample())
		o.phase += freq / sr
		o.phase -= math.Floor(o.phase)
	}
	o.finishIfPast(frame)
}

func (o *OscillatorNode) sample() float64 {
	p := o.phase
	switch o.typ {
	case Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*p - 1
	case Triangle:
		if p < 0.5 {
			return 4*p - 1
		}
		return 3 - 4*p
	case Custom:
		if o.wave != nil {
			return o.wave.at(p)
		}
		return 0
	default:
		return math.Sin(2 * math.Pi * p)
	}
}
