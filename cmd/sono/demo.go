package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/urfave/cli/v2"
	"gitlab.com/gomidi/midi/v2"

	"github.com/ingyamilmolinar/sono/core/loop"
	"github.com/ingyamilmolinar/sono/core/session"
	sono_audio "github.com/ingyamilmolinar/sono/internal/audio"
	"github.com/ingyamilmolinar/sono/internal/config"
	sono_log "github.com/ingyamilmolinar/sono/internal/log"
	sono_midi "github.com/ingyamilmolinar/sono/internal/midi"
	"github.com/ingyamilmolinar/sono/internal/utils"
)

// demo is a session set up from command line flags.
type demo struct {
	sess     *session.Session
	clock    *loop.Clock
	keyboard *sono_midi.Controller
	notes    []string
	synth    bool
	bpm      int
}

func newDemo(ctx context.Context, c *cli.Context, cfg config.Config, logger *sono_log.Logger) (*demo, error) {
	if bpm := c.Int("bpm"); bpm <= 0 {
		return nil, fmt.Errorf("invalid bpm %d", bpm)
	}
	var opts []session.Option
	if path := c.String("soundfont"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read soundfont: %w", err)
		}
		opts = append(opts, session.WithSoundFont(data))
	}
	s, err := session.New(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	d := &demo{
		sess:     s,
		clock:    loop.NewClock(s, logger),
		keyboard: sono_midi.NewController(s, logger, sono_midi.WithFade(true)),
		notes:    c.StringSlice("note"),
		bpm:      c.Int("bpm"),
	}
	if err := d.setup(ctx, c); err != nil {
		s.Close()
		return nil, err
	}
	return d, nil
}

func (d *demo) setup(ctx context.Context, c *cli.Context) error {
	s := d.sess
	for i, src := range c.StringSlice("loop") {
		id := fmt.Sprintf("loop%d", i)
		if strings.Contains(src, "://") {
			if err := s.LoadFile(ctx, src, id, session.Looper, 1); err != nil {
				return err
			}
			continue
		}
		buf, err := sono_audio.RenderDrum(src, d.bpm, s.Graph().SampleRate())
		if err != nil {
			return err
		}
		s.StoreFile(buf, id, session.Looper, 1)
	}
	if id := c.String("effect"); id != "" {
		if err := s.ApplyEffect(id, session.Keys); err != nil {
			return err
		}
	}
	if id := c.String("impulse"); id != "" {
		if err := s.ApplyImpulse(id, session.Keys); err != nil {
			return err
		}
	}
	if kind := c.String("synth"); kind != "" {
		if err := s.LoadSynth(kind); err != nil {
			return err
		}
		d.synth = true
	}
	for _, n := range d.notes {
		if _, err := parseNote(n); err != nil {
			return err
		}
	}
	return nil
}

// startLoops starts every stored loop through the clock.
func (d *demo) startLoops(n int) error {
	for i := 0; i < n; i++ {
		l := loop.Loop{ID: fmt.Sprintf("loop%d", i), Selected: loop.Selected{BPM: float64(d.bpm), OriginalBPM: float64(d.bpm)}}
		if _, err := d.clock.Start(l); err != nil {
			return err
		}
	}
	return nil
}

// noteOn plays note i. Oscillator notes go through the MIDI controller.
func (d *demo) noteOn(i int) {
	name := d.notes[i%len(d.notes)]
	if d.synth {
		freq, _ := parseNote(name)
		d.sess.PlaySynth(freq)
		return
	}
	key, _ := noteKey(name)
	d.keyboard.Handle(midi.NoteOn(0, key, 100), 0)
}

func (d *demo) noteOff(i int) {
	name := d.notes[i%len(d.notes)]
	if d.synth {
		freq, _ := parseNote(name)
		d.sess.StopSynth(freq)
		return
	}
	key, _ := noteKey(name)
	d.keyboard.Handle(midi.NoteOff(0, key), 0)
}

// noteKey accepts names like C4, F#3 or A#5.
func noteKey(name string) (uint8, error) {
	for key := 0; key < 128; key++ {
		if utils.NoteName(key) == name {
			return uint8(key), nil
		}
	}
	return 0, fmt.Errorf("unknown note %q", name)
}

func parseNote(name string) (float64, error) {
	key, err := noteKey(name)
	if err != nil {
		return 0, err
	}
	return utils.MidiToFreq(int(key)), nil
}

func renderAction(c *cli.Context) error {
	out := c.Args().First()
	if out == "" {
		return errors.New("render: missing output file")
	}
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	d, err := newDemo(c.Context, c, cfg, logger)
	if err != nil {
		return err
	}
	defer d.sess.Close()
	if err := d.startLoops(len(c.StringSlice("loop"))); err != nil {
		return err
	}

	rate := cfg.SampleRate
	total := int(c.Float64("seconds") * float64(rate))
	beat := rate * 60 / d.bpm
	pcm := make([]float32, total)
	for pos, i := 0, 0; pos < total; i++ {
		n := min(beat, total-pos)
		if len(d.notes) > 0 {
			d.noteOn(i)
		}
		d.sess.Graph().Render(pcm[pos : pos+n/2])
		if len(d.notes) > 0 {
			d.noteOff(i)
		}
		d.sess.Graph().Render(pcm[pos+n/2 : pos+n])
		pos += n
	}
	if err := writeWAV(out, pcm, rate); err != nil {
		return err
	}
	logger.Infof("rendered %.1fs to %s", float64(total)/float64(rate), out)
	return nil
}

func writeWAV(path string, pcm []float32, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(math.Round(utils.Clamp(float64(v), -1, 1) * 32767))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
