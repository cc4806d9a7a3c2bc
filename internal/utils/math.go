package utils

import (
	"math"
	"strconv"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// DBToGain converts decibels to a linear amplitude factor.
func DBToGain(db float64) float64 { return math.Pow(10, db/20) }

// GainToDB converts a linear amplitude factor to decibels.
func GainToDB(g float64) float64 {
	if g <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(g)
}

// MidiToFreq returns the equal-tempered frequency of a MIDI key (A4 = 69 = 440Hz).
func MidiToFreq(key int) float64 {
	return 440 * math.Pow(2, float64(key-69)/12)
}

// FreqToMidi returns the nearest MIDI key for a frequency.
func FreqToMidi(freq float64) int {
	if freq <= 0 {
		return 0
	}
	k := int(math.Round(69 + 12*math.Log2(freq/440)))
	if k < 0 {
		return 0
	}
	if k > 127 {
		return 127
	}
	return k
}

// NoteName returns the scientific pitch name of a MIDI key, e.g. 60 -> "C4".
func NoteName(key int) string {
	octave := key/12 - 1
	return noteNames[key%12] + strconv.Itoa(octave)
}
