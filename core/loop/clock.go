// Package loop keeps looping samples in phase with one reference loop. The
// first loop started becomes the base; later loops start and stop on the
// base's next bar boundary.
package loop

import (
	"fmt"
	"math"
	"sync"

	"github.com/ingyamilmolinar/sono/core/session"
	"github.com/ingyamilmolinar/sono/internal/graph"
	sono_log "github.com/ingyamilmolinar/sono/internal/log"
	"github.com/ingyamilmolinar/sono/internal/utils"
)

// Player is the registry the clock drives. *session.Session implements it.
type Player interface {
	PlaySound(playerID, instr string, opts session.PlayOptions)
	StopSound(playerID, instr string, delay float64)
	SetPlaybackRate(playerID, instr string, rate float64)
	PlayingCount(instr string) int
	Source(playerID, instr string) (*graph.BufferSourceNode, bool)
	CurrentTime() float64
}

// Selected is the tempo a loop plays at and the tempo it was recorded at.
type Selected struct {
	BPM         float64 `json:"bpm"`
	OriginalBPM float64 `json:"originalBpm"`
}

// Loop describes a looper sample stored under its ID.
type Loop struct {
	ID       string   `json:"id"`
	Selected Selected `json:"selected"`
}

type baseLoop struct {
	loop    Loop
	src     *graph.BufferSourceNode
	started float64
}

// Clock aligns loop starts and stops to the base loop's bars.
type Clock struct {
	mu     sync.Mutex
	player Player
	table  Table
	base   *baseLoop
	now    func() float64
	logger *sono_log.Logger
}

// NewClock returns a clock over p using the built-in BPM table.
func NewClock(p Player, logger *sono_log.Logger) *Clock {
	return &Clock{
		player: p,
		table:  DefaultTable(),
		now:    p.CurrentTime,
		logger: logger.Named("loop"),
	}
}

// SetTable replaces the BPM table.
func (c *Clock) SetTable(t Table) {
	c.mu.Lock()
	c.table = t
	c.mu.Unlock()
}

// untilBar returns the time to the base's next bar boundary.
func (c *Clock) untilBar() (float64, error) {
	bar, err := c.table.Bar(c.base.loop.Selected.BPM)
	if err != nil {
		return 0, err
	}
	elapsed := c.now() - c.base.started
	return bar - math.Mod(elapsed, bar), nil
}

// Start plays l as a looping sample. With no base loop, l becomes the base
// and starts at once. Otherwise it starts on the next bar. The returned
// delay is in seconds, rounded to one decimal for display. A loop with no
// stored sample never becomes the base.
func (c *Clock) Start(l Loop) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == nil {
		if _, err := c.table.Bar(l.Selected.BPM); err != nil {
			return 0, fmt.Errorf("start loop %s: %w", l.ID, err)
		}
		if _, ok := c.player.Source(l.ID, session.Looper); !ok {
			c.logger.Debugf("loop %s has no sample", l.ID)
			return 0, nil
		}
		started := c.now()
		c.player.PlaySound(l.ID, session.Looper, session.PlayOptions{Loop: true})
		src, _ := c.player.Source(l.ID, session.Looper)
		c.base = &baseLoop{loop: l, src: src, started: started}
		c.logger.Debugf("loop %s is the base at %.1f bpm", l.ID, l.Selected.BPM)
		return 0, nil
	}
	delay, err := c.untilBar()
	if err != nil {
		return 0, fmt.Errorf("start loop %s: %w", l.ID, err)
	}
	c.player.PlaySound(l.ID, session.Looper, session.PlayOptions{Loop: true, Delay: delay})
	return utils.Round(delay, 1), nil
}

// Stop stops l on the next bar and clears the base once no loop is left
// playing. Without a base the loop stops immediately.
func (c *Clock) Stop(l Loop) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var delay float64
	if c.base != nil {
		d, err := c.untilBar()
		if err != nil {
			return 0, fmt.Errorf("stop loop %s: %w", l.ID, err)
		}
		delay = d
	}
	c.player.StopSound(l.ID, session.Looper, delay)
	if c.player.PlayingCount(session.Looper) == 0 {
		c.base = nil
	}
	return utils.Round(delay, 1), nil
}

// ChangeBPM plays l at bpm by scaling its playback rate against the tempo
// it was recorded at. The base loop's tempo follows when l is the base.
func (c *Clock) ChangeBPM(l Loop, bpm float64) error {
	if bpm <= 0 || l.Selected.OriginalBPM <= 0 {
		return fmt.Errorf("change bpm of %s: %w: %v", l.ID, ErrUnknownBPM, bpm)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base != nil && c.base.loop.ID == l.ID {
		c.base.loop.Selected.BPM = bpm
	}
	c.player.SetPlaybackRate(l.ID, session.Looper, bpm/l.Selected.OriginalBPM)
	return nil
}

// BaseSource returns the source node playing the base loop.
func (c *Clock) BaseSource() (*graph.BufferSourceNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == nil || c.base.src == nil {
		return nil, false
	}
	return c.base.src, true
}

// Base returns the base loop, if any.
func (c *Clock) Base() (Loop, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == nil {
		return Loop{}, false
	}
	return c.base.loop, true
}
