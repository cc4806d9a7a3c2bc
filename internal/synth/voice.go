package synth

import "math"

// Envelope is an ADSR envelope; times in seconds, Sustain as a level.
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

var defaultEnvelope = Envelope{Attack: 0.005, Decay: 0.1, Sustain: 0.3, Release: 1}

type envStage int

const (
	stageIdle envStage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

type envState struct {
	Envelope
	sr      float64
	stage   envStage
	level   float64
	relStep float64
}

func (e *envState) gate(on bool) {
	if on {
		e.stage = stageAttack
		return
	}
	if e.stage == stageIdle {
		return
	}
	e.stage = stageRelease
	e.relStep = e.level / math.Max(e.Release*e.sr, 1)
}

func (e *envState) next() float64 {
	switch e.stage {
	case stageAttack:
		e.level += 1 / math.Max(e.Attack*e.sr, 1)
		if e.level >= 1 {
			e.level = 1
			e.stage = stageDecay
		}
	case stageDecay:
		e.level -= (1 - e.Sustain) / math.Max(e.Decay*e.sr, 1)
		if e.level <= e.Sustain {
			e.level = e.Sustain
			e.stage = stageSustain
		}
	case stageRelease:
		e.level -= e.relStep
		if e.level <= 0 {
			e.level = 0
			e.stage = stageIdle
		}
	}
	return e.level
}

// oscFunc returns a sample given the carrier phase in cycles and the
// carrier frequency step; it may keep its own modulator state.
type oscFunc func(phase float64) float64

func triangleOsc(p float64) float64 {
	p -= math.Floor(p)
	if p < 0.5 {
		return 4*p - 1
	}
	return 3 - 4*p
}

// amOsc multiplies a sine carrier by a square modulator at harmonicity times
// the carrier frequency.
func amOsc(harmonicity float64) oscFunc {
	return func(p float64) float64 {
		m := math.Sin(2 * math.Pi * p * harmonicity)
		mod := 0.5
		if m >= 0 {
			mod = 1
		}
		return math.Sin(2*math.Pi*p) * mod
	}
}

// fmOsc phase-modulates a sine carrier with a sine modulator.
func fmOsc(harmonicity, index float64) oscFunc {
	return func(p float64) float64 {
		return math.Sin(2*math.Pi*p + index*math.Sin(2*math.Pi*p*harmonicity)/harmonicity)
	}
}

type oscVoice struct {
	osc   oscFunc
	env   envState
	sr    float64
	freq  float64
	phase float64
}

func newOscVoice(sampleRate int, osc oscFunc, env Envelope) *oscVoice {
	sr := float64(sampleRate)
	return &oscVoice{osc: osc, sr: sr, env: envState{Envelope: env, sr: sr}}
}

func (v *oscVoice) noteOn(freq float64) {
	v.freq = freq
	v.env.gate(true)
}

func (v *oscVoice) noteOff() { v.env.gate(false) }

func (v *oscVoice) render(out []float32) {
	for i := range out {
		if v.env.stage == stageIdle {
			out[i] = 0
			continue
		}
		out[i] = float32(v.osc(v.phase) * v.env.next())
		v.phase += v.freq / v.sr
		// keep the phase bounded while preserving harmonic alignment
		if v.phase > 1e6 {
			v.phase -= math.Floor(v.phase)
		}
	}
}
