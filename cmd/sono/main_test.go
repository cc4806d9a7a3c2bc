package main

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
)

func TestParseNote(t *testing.T) {
	f, err := parseNote("A4")
	if err != nil || f != 440 {
		t.Fatalf("A4 = %v, %v", f, err)
	}
	if f, _ := parseNote("C#5"); math.Abs(f-554.365) > 1e-3 {
		t.Fatalf("C#5 = %v", f)
	}
	if _, err := parseNote("H2"); err == nil {
		t.Fatal("expected error for unknown note")
	}
}

func TestRenderWritesWAV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "demo.wav")
	app := newApp()
	app.ErrWriter = io.Discard
	args := []string{"sono", "render", "--seconds", "0.5", "--loop", "kick", "--loop", "hihat",
		"--note", "C4", "--note", "E4", "--effect", "chorus", "--impulse", "room", out}
	if err := app.Run(args); err != nil {
		t.Fatalf("render: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 44100 || buf.NumFrames() != 22050 {
		t.Fatalf("rate=%d frames=%d", dec.SampleRate, buf.NumFrames())
	}
	var nonzero bool
	for _, v := range buf.Data {
		if v != 0 {
			nonzero = true
			break
		}
	}
	if !nonzero {
		t.Fatal("rendered file is silent")
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	app := newApp()
	app.ErrWriter = io.Discard
	dir := t.TempDir()
	if err := app.Run([]string{"sono", "render", "--effect", "nope", filepath.Join(dir, "x.wav")}); err == nil {
		t.Fatal("expected error for unknown effect")
	}
	if err := app.Run([]string{"sono", "render", "--note", "Q9", filepath.Join(dir, "y.wav")}); err == nil {
		t.Fatal("expected error for unknown note")
	}
	for _, bpm := range []string{"0", "-60"} {
		err := app.Run([]string{"sono", "render", "--bpm", bpm, "--seconds", "0.1", filepath.Join(dir, "z.wav")})
		if err == nil {
			t.Fatalf("expected error for bpm %s", bpm)
		}
	}
}

func TestList(t *testing.T) {
	var b bytes.Buffer
	app := newApp()
	app.Writer = &b
	if err := app.Run([]string{"sono", "list"}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"overdrive", "hall", "FMSynth", "kick"} {
		if !strings.Contains(b.String(), want) {
			t.Fatalf("list output missing %q:\n%s", want, b.String())
		}
	}
}
