package audio

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/ingyamilmolinar/sono/internal/graph"
)

// Voice generates PCM samples in the range [-1,1].
type Voice interface {
	// Sample returns the next sample and whether the voice has finished.
	Sample() (float64, bool)
}

// Instrument constructs a new Voice for a tempo and sample rate. Hit lengths
// are fractions of a beat.
type Instrument func(bpm, sampleRate int) Voice

var kit = map[string]Instrument{
	"kick":  newKick,
	"snare": newNoiseHit(0.25, 18, 0.6, 185),
	"hihat": newNoiseHit(0.125, 40, 1, 0),
	"clap":  newClap,
	"tom":   newTom,
}

// DrumIDs lists the built-in drum sounds.
func DrumIDs() []string {
	ids := make([]string, 0, len(kit))
	for id := range kit {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RenderDrum renders one hit of drum id into a buffer that can be stored in
// a session like any decoded sample.
func RenderDrum(id string, bpm, sampleRate int) (*graph.Buffer, error) {
	inst, ok := kit[id]
	if !ok {
		return nil, fmt.Errorf("audio: unknown drum %q", id)
	}
	if bpm <= 0 {
		return nil, fmt.Errorf("audio: invalid bpm %d", bpm)
	}
	v := inst(bpm, sampleRate)
	var data []float32
	for {
		s, done := v.Sample()
		if done {
			break
		}
		data = append(data, float32(s))
	}
	return graph.BufferFromChannels(sampleRate, data)
}

func beatSamples(bpm, sampleRate int, beats float64) int {
	return int(60 / float64(bpm) * beats * float64(sampleRate))
}

// kickVoice is a decaying sine with a downward pitch bend.
type kickVoice struct {
	i, n  int
	sr    float64
	phase float64
}

func newKick(bpm, sampleRate int) Voice {
	return &kickVoice{n: beatSamples(bpm, sampleRate, 0.5), sr: float64(sampleRate)}
}

func (k *kickVoice) Sample() (float64, bool) {
	if k.i >= k.n {
		return 0, true
	}
	t := float64(k.i) / float64(k.n)
	freq := 150 - 100*t
	k.phase += 2 * math.Pi * freq / k.sr
	v := math.Sin(k.phase) * math.Exp(-5*t)
	k.i++
	return v, false
}

// noiseVoice is white noise with an exponential decay, optionally mixed
// with a sine body.
type noiseVoice struct {
	i, n  int
	sr    float64
	decay float64
	noise float64
	tone  float64
	phase float64
	rng   *rand.Rand
}

func newNoiseHit(beats, decay, noise, tone float64) Instrument {
	return func(bpm, sampleRate int) Voice {
		return &noiseVoice{
			n:     beatSamples(bpm, sampleRate, beats),
			sr:    float64(sampleRate),
			decay: decay,
			noise: noise,
			tone:  tone,
			rng:   rand.New(rand.NewSource(int64(bpm)*7919 + int64(sampleRate))),
		}
	}
}

func (v *noiseVoice) Sample() (float64, bool) {
	if v.i >= v.n {
		return 0, true
	}
	t := float64(v.i) / v.sr
	env := math.Exp(-v.decay * t)
	s := (v.rng.Float64()*2 - 1) * v.noise
	if v.tone > 0 {
		v.phase += 2 * math.Pi * v.tone / v.sr
		s += math.Sin(v.phase) * (1 - v.noise)
	}
	v.i++
	return s * env, false
}

// clapVoice is three quick noise bursts followed by a tail.
type clapVoice struct {
	noiseVoice
}

func newClap(bpm, sampleRate int) Voice {
	base := newNoiseHit(0.25, 25, 1, 0)(bpm, sampleRate).(*noiseVoice)
	return &clapVoice{noiseVoice: *base}
}

func (c *clapVoice) Sample() (float64, bool) {
	t := float64(c.i) / c.sr
	s, done := c.noiseVoice.Sample()
	if done {
		return 0, true
	}
	// bursts at 0, 10 and 20 ms retrigger the envelope
	burst := math.Mod(t, 0.01)
	if t < 0.03 {
		return s / math.Exp(-c.decay*t) * math.Exp(-300*burst), false
	}
	return s, false
}

func newTom(bpm, sampleRate int) Voice {
	return &tomVoice{kickVoice: kickVoice{n: beatSamples(bpm, sampleRate, 0.5), sr: float64(sampleRate)}}
}

// tomVoice is a higher, slower kick.
type tomVoice struct {
	kickVoice
}

func (v *tomVoice) Sample() (float64, bool) {
	k := &v.kickVoice
	if k.i >= k.n {
		return 0, true
	}
	t := float64(k.i) / float64(k.n)
	k.phase += 2 * math.Pi * (220 - 60*t) / k.sr
	s := math.Sin(k.phase) * math.Exp(-4*t)
	k.i++
	return s, false
}
