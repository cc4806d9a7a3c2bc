package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ingyamilmolinar/sono/internal/audio"
	"github.com/ingyamilmolinar/sono/internal/broadcast"
)

func playAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDemo(ctx, c, cfg, logger)
	if err != nil {
		return err
	}
	defer d.sess.Close()

	url := c.String("broadcast")
	if url == "" {
		url = cfg.BroadcastURL
	}
	if url != "" {
		ws, err := broadcast.Dial(ctx, url, nil)
		if err != nil {
			return err
		}
		defer ws.Close()
		if err := d.sess.InitRecorder(ws); err != nil {
			return err
		}
		d.sess.SetRecording(true)
	}

	out, err := audio.Open(d.sess.Graph(), audio.Options{
		SampleRate:   cfg.SampleRate,
		Channels:     2,
		BufferFrames: cfg.OutputBufferFrames,
	}, logger)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := d.startLoops(len(c.StringSlice("loop"))); err != nil {
		return err
	}

	beat := time.Minute / time.Duration(d.bpm)
	ticker := time.NewTicker(beat / 2)
	defer ticker.Stop()
	defer d.keyboard.AllNotesOff()
	deadline := time.After(time.Duration(c.Float64("seconds") * float64(time.Second)))
	for tick := 0; ; tick++ {
		select {
		case <-ticker.C:
			if len(d.notes) == 0 {
				continue
			}
			if tick%2 == 0 {
				d.noteOn(tick / 2)
			} else {
				d.noteOff(tick / 2)
			}
		case <-deadline:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

