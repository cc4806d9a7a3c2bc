package loop

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrUnknownBPM is returned when a tempo has no entry in the table.
var ErrUnknownBPM = errors.New("loop: unknown bpm")

// Durations are note lengths in milliseconds at one tempo.
type Durations struct {
	OneBar    float64 `json:"oneBar"`
	Half      float64 `json:"half"`
	Quarter   float64 `json:"quarter"`
	Eighth    float64 `json:"eighth"`
	Sixteenth float64 `json:"sixteenth"`
}

// Table maps a tempo, written as in "120", to its durations.
type Table map[string]Durations

//go:embed bpm.json
var defaultTable []byte

// DefaultTable returns the built-in 4/4 table for 40 to 240 BPM.
func DefaultTable() Table {
	t, err := LoadTable(bytes.NewReader(defaultTable))
	if err != nil {
		panic(fmt.Sprintf("loop: embedded bpm table: %v", err))
	}
	return t
}

// LoadTable reads a JSON table.
func LoadTable(r io.Reader) (Table, error) {
	var t Table
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("loop: parse bpm table: %w", err)
	}
	for k, d := range t {
		if d.OneBar <= 0 {
			return nil, fmt.Errorf("loop: bpm %s: oneBar must be positive", k)
		}
	}
	return t, nil
}

// Bar returns the length of one bar at bpm in seconds.
func (t Table) Bar(bpm float64) (float64, error) {
	key := strconv.FormatFloat(bpm, 'f', -1, 64)
	d, ok := t[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownBPM, key)
	}
	return d.OneBar / 1000, nil
}
