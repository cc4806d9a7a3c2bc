package synth

import (
	"fmt"
	"io"

	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/ingyamilmolinar/sono/internal/utils"
)

// sfSynth is the subset of meltysynth.Synthesizer the SoundFont voice uses.
type sfSynth interface {
	ProcessMidiMessage(channel, command, data1, data2 int32)
	NoteOn(channel, key, vel int32)
	NoteOff(channel, key int32)
	Render(left, right []float32)
}

// newSynthesizer builds the meltysynth backend. Tests replace it.
var newSynthesizer = func(sf *meltysynth.SoundFont, settings *meltysynth.SynthesizerSettings) (sfSynth, error) {
	return meltysynth.NewSynthesizer(sf, settings)
}

// loadSoundFont parses SF2 data. Tests replace it.
var loadSoundFont = func(r io.Reader) (*meltysynth.SoundFont, error) {
	return meltysynth.NewSoundFont(r)
}

const programChange = 0xC0

type soundFontVoice struct {
	syn         sfSynth
	key         int32
	on          bool
	left, right []float32
}

func newSoundFontVoice(r io.Reader, sampleRate, program int) (*soundFontVoice, error) {
	sf, err := loadSoundFont(r)
	if err != nil {
		return nil, fmt.Errorf("synth: load soundfont: %w", err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	syn, err := newSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("synth: new synthesizer: %w", err)
	}
	if program > 0 {
		syn.ProcessMidiMessage(0, programChange, int32(program), 0)
	}
	return &soundFontVoice{syn: syn}, nil
}

func (v *soundFontVoice) noteOn(freq float64) {
	if v.on {
		v.syn.NoteOff(0, v.key)
	}
	v.key = int32(utils.FreqToMidi(freq))
	v.on = true
	v.syn.NoteOn(0, v.key, 100)
}

func (v *soundFontVoice) noteOff() {
	if !v.on {
		return
	}
	v.syn.NoteOff(0, v.key)
	v.on = false
}

func (v *soundFontVoice) render(out []float32) {
	if cap(v.left) < len(out) {
		v.left = make([]float32, len(out))
		v.right = make([]float32, len(out))
	}
	l, r := v.left[:len(out)], v.right[:len(out)]
	v.syn.Render(l, r)
	for i := range out {
		out[i] = (l[i] + r[i]) / 2
	}
}
