// Package config holds session settings, loaded from a JSON file over
// built-in defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Duration is a time.Duration that reads and writes as a string like "10s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Gains are the fixed voice levels.
type Gains struct {
	Note   float64 `json:"note"`
	Sweep  float64 `json:"sweep"`
	Sample float64 `json:"sample"`
	Master float64 `json:"master"`
}

// Recorder configures the broadcast tap.
type Recorder struct {
	BufferSize     int `json:"buffer_size"`
	MergerChannels int `json:"merger_channels"`
	QueueDepth     int `json:"queue_depth"`
}

// Loader configures remote asset fetching.
type Loader struct {
	BaseURL           string   `json:"base_url,omitempty"`
	Timeout           Duration `json:"timeout"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	Burst             int      `json:"burst"`
	Concurrency       int      `json:"concurrency"`
	MaxBytes          int64    `json:"max_bytes"`
}

type Config struct {
	SampleRate int `json:"sample_rate"`
	// OutputBufferFrames is the device buffer hint for live output.
	OutputBufferFrames int `json:"output_buffer_frames"`

	Gains    Gains    `json:"gains"`
	Recorder Recorder `json:"recorder"`
	Loader   Loader   `json:"loader"`

	// BroadcastURL is the WebSocket endpoint recorded audio is sent to.
	BroadcastURL string `json:"broadcast_url,omitempty"`
	LogLevel     string `json:"log_level"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		SampleRate:         44100,
		OutputBufferFrames: 1024,
		Gains: Gains{
			Note:   0.3,
			Sweep:  0.3,
			Sample: 0.5,
			Master: 1,
		},
		Recorder: Recorder{
			BufferSize:     2048,
			MergerChannels: 10,
			QueueDepth:     32,
		},
		Loader: Loader{
			Timeout:           Duration(30 * time.Second),
			RequestsPerSecond: 8,
			Burst:             4,
			Concurrency:       4,
			MaxBytes:          64 << 20,
		},
		LogLevel: "INFO",
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as indented JSON.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate < 8000 || c.SampleRate > 192000:
		return fmt.Errorf("sample_rate %d out of range", c.SampleRate)
	case c.Recorder.BufferSize < 256 || c.Recorder.BufferSize&(c.Recorder.BufferSize-1) != 0:
		return fmt.Errorf("recorder.buffer_size %d must be a power of two >= 256", c.Recorder.BufferSize)
	case c.Recorder.MergerChannels < 1 || c.Recorder.MergerChannels > 32:
		return fmt.Errorf("recorder.merger_channels %d out of range", c.Recorder.MergerChannels)
	case c.Loader.Concurrency < 1:
		return fmt.Errorf("loader.concurrency must be positive")
	case c.Loader.RequestsPerSecond < 0:
		return fmt.Errorf("loader.requests_per_second must not be negative")
	}
	return nil
}
