// Package midi turns MIDI note messages into session note calls.
package midi

import (
	"sync"

	"gitlab.com/gomidi/midi/v2"

	sono_log "github.com/ingyamilmolinar/sono/internal/log"
	"github.com/ingyamilmolinar/sono/internal/utils"
)

const sustainPedal = 64

// NotePlayer is the part of the session a controller drives.
type NotePlayer interface {
	PlayNote(freq float64, note string)
	StopNote(note string, fade bool)
}

// Controller maps note on/off to PlayNote/StopNote. Holding the sustain
// pedal defers note offs until it is released.
type Controller struct {
	mu       sync.Mutex
	player   NotePlayer
	channel  int
	fade     bool
	sustain  bool
	held     map[string]bool
	sounding map[string]bool
	logger   *sono_log.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// OnChannel restricts the controller to one channel (0-15).
func OnChannel(ch uint8) ControllerOption {
	return func(c *Controller) { c.channel = int(ch) }
}

// WithFade makes note offs fade out instead of cutting.
func WithFade(fade bool) ControllerOption {
	return func(c *Controller) { c.fade = fade }
}

func NewController(p NotePlayer, logger *sono_log.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		player:   p,
		channel:  -1,
		held:     map[string]bool{},
		sounding: map[string]bool{},
		logger:   logger.Named("midi"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Handle processes one message. Its signature fits midi.ListenTo.
func (c *Controller) Handle(msg midi.Message, timestampms int32) {
	var ch, key, vel, cc, val uint8
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !c.accepts(ch) {
			return
		}
		name := utils.NoteName(int(key))
		delete(c.held, name)
		c.sounding[name] = true
		c.player.PlayNote(utils.MidiToFreq(int(key)), name)
	case msg.GetNoteEnd(&ch, &key):
		if !c.accepts(ch) {
			return
		}
		name := utils.NoteName(int(key))
		if c.sustain {
			c.held[name] = true
			return
		}
		delete(c.sounding, name)
		c.player.StopNote(name, c.fade)
	case msg.GetControlChange(&ch, &cc, &val):
		if !c.accepts(ch) || cc != sustainPedal {
			return
		}
		c.setSustain(val >= 64)
	default:
		c.logger.Debugf("ignored %s", msg)
	}
}

func (c *Controller) accepts(ch uint8) bool {
	return c.channel < 0 || int(ch) == c.channel
}

func (c *Controller) setSustain(on bool) {
	c.sustain = on
	if on {
		return
	}
	for name := range c.held {
		delete(c.sounding, name)
		c.player.StopNote(name, c.fade)
	}
	c.held = map[string]bool{}
}

// AllNotesOff stops every note the controller started.
func (c *Controller) AllNotesOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.sounding {
		c.player.StopNote(name, false)
	}
	c.sounding = map[string]bool{}
	c.held = map[string]bool{}
}
