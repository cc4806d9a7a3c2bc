package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ingyamilmolinar/sono/internal/audio"
	"github.com/ingyamilmolinar/sono/internal/config"
	"github.com/ingyamilmolinar/sono/internal/fx"
	sono_log "github.com/ingyamilmolinar/sono/internal/log"
	"github.com/ingyamilmolinar/sono/internal/synth"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sono:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sono",
		Usage: "play and render sono audio sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "JSON config file", EnvVars: []string{"SONO_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Usage: "DEBUG, INFO, WARN, ERROR or NONE (overrides the config)"},
		},
		Commands: []*cli.Command{
			{
				Name:      "render",
				Usage:     "render a session offline to a WAV file",
				ArgsUsage: "OUT.wav",
				Flags:     sessionFlags(),
				Action:    renderAction,
			},
			{
				Name:   "play",
				Usage:  "play a session on the sound card",
				Flags:  append(sessionFlags(), &cli.StringFlag{Name: "broadcast", Usage: "WebSocket URL to stream the recorder to"}),
				Action: playAction,
			},
			{
				Name:  "list",
				Usage: "list effects, impulses, synth kinds and drums",
				Action: func(c *cli.Context) error {
					w := c.App.Writer
					fmt.Fprintln(w, "effects: ", strings.Join(fx.EffectIDs(), " "))
					fmt.Fprintln(w, "impulses:", strings.Join(fx.ImpulseIDs(), " "))
					fmt.Fprintln(w, "synths:  ", strings.Join(synth.Kinds(), " "))
					fmt.Fprintln(w, "drums:   ", strings.Join(audio.DrumIDs(), " "))
					return nil
				},
			},
		},
	}
}

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: "seconds", Value: 4, Usage: "length of the session"},
		&cli.IntFlag{Name: "bpm", Value: 120, Usage: "tempo of the drum loops"},
		&cli.StringSliceFlag{Name: "loop", Usage: "drum or sample URL to loop, aligned to the first loop"},
		&cli.StringSliceFlag{Name: "note", Usage: "note to play in sequence, e.g. C4"},
		&cli.StringFlag{Name: "synth", Usage: "synth kind that plays the notes instead of oscillators"},
		&cli.StringFlag{Name: "soundfont", Usage: "SoundFont file for the SoundFont synth"},
		&cli.StringFlag{Name: "effect", Usage: "effect applied to notes"},
		&cli.StringFlag{Name: "impulse", Usage: "impulse applied to notes"},
	}
}

func loadConfig(c *cli.Context) (config.Config, *sono_log.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, nil, err
	}
	if lv := c.String("log-level"); lv != "" {
		cfg.LogLevel = lv
	}
	logger := sono_log.New(c.App.ErrWriter, sono_log.LevelFromString(cfg.LogLevel))
	return cfg, logger, nil
}
