package utils

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	if got := Round(1.26, 1); got != 1.3 {
		t.Fatalf("Round(1.26,1) = %v", got)
	}
	if got := Round(0.04, 1); got != 0 {
		t.Fatalf("Round(0.04,1) = %v", got)
	}
}

func TestMidiRoundTrip(t *testing.T) {
	if f := MidiToFreq(69); f != 440 {
		t.Fatalf("A4 = %v", f)
	}
	if f := MidiToFreq(60); math.Abs(f-261.6256) > 1e-3 {
		t.Fatalf("C4 = %v", f)
	}
	for k := 21; k <= 108; k++ {
		if got := FreqToMidi(MidiToFreq(k)); got != k {
			t.Fatalf("FreqToMidi(MidiToFreq(%d)) = %d", k, got)
		}
	}
}

func TestNoteName(t *testing.T) {
	cases := map[int]string{60: "C4", 69: "A4", 61: "C#4", 0: "C-1", 127: "G9"}
	for k, want := range cases {
		if got := NoteName(k); got != want {
			t.Errorf("NoteName(%d) = %q, want %q", k, got, want)
		}
	}
}

func TestClampAndDB(t *testing.T) {
	if Clamp(2, 0, 1) != 1 || Clamp(-1, 0, 1) != 0 || Clamp(0.5, 0, 1) != 0.5 {
		t.Fatal("clamp")
	}
	if g := DBToGain(-6); math.Abs(g-0.501) > 1e-3 {
		t.Fatalf("DBToGain(-6) = %v", g)
	}
	if db := GainToDB(1); db != 0 {
		t.Fatalf("GainToDB(1) = %v", db)
	}
}
