// Package session is the audio session registry: it owns the live voices of
// one audio graph, keyed by player/instrument or note, and wires them into
// the routing chain
//
//	source → effect slot → impulse slot → merger → destination
//
// Play and stop calls on keys that have no entry do nothing.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ingyamilmolinar/sono/internal/broadcast"
	"github.com/ingyamilmolinar/sono/internal/config"
	"github.com/ingyamilmolinar/sono/internal/fx"
	"github.com/ingyamilmolinar/sono/internal/graph"
	"github.com/ingyamilmolinar/sono/internal/loader"
	sono_log "github.com/ingyamilmolinar/sono/internal/log"
	"github.com/ingyamilmolinar/sono/internal/synth"
)

const (
	noteStopDelay  = 0.1
	noteFadeLength = 0.5
	sweepStopDelay = 0.0001
	sweepDetuneRef = 125
)

// entry is one registry voice. Exactly one of osc and src is set.
type entry struct {
	osc     *graph.OscillatorNode
	src     *graph.BufferSourceNode
	gain    *graph.GainNode
	playing bool
}

func (e *entry) ended() bool {
	if e.osc != nil {
		return e.osc.Ended()
	}
	return e.src.Ended()
}

type effectSlot struct {
	id     string
	effect *fx.Effect
}

type sweepVoice struct {
	osc     *graph.OscillatorNode
	gain    *graph.GainNode
	hasWave bool
	playing bool
}

// Wavetable holds the Fourier coefficients of a custom sweep waveform.
type Wavetable struct {
	Real []float64
	Imag []float64
}

// PlayOptions tune PlaySound.
type PlayOptions struct {
	Loop bool
	// Delay in seconds from now.
	Delay float64
	// PlaybackRate overrides the stored rate when positive.
	PlaybackRate float64
}

// Option configures a Session.
type Option func(*Session)

// WithSoundFont supplies SoundFont data for the SoundFont synth kind.
func WithSoundFont(data []byte) Option {
	return func(s *Session) { s.soundFont = data }
}

// WithHTTPClient sets the client used by the asset loader.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpClient = c }
}

// Session is an audio registry bound to one graph context. It is safe for
// concurrent use; the session lock is always taken before the graph lock.
type Session struct {
	mu     sync.Mutex
	cfg    config.Config
	logger *sono_log.Logger

	ctx     *graph.Context
	effects *fx.Library
	master  *graph.GainNode
	fetcher *loader.Fetcher

	entries  map[Key]*entry
	slots    map[string]*effectSlot
	impulses map[string]*graph.ConvolverNode
	sweep    *sweepVoice
	synth    *synth.Synth

	merger    *graph.ChannelMergerNode
	recorder  *graph.ScriptProcessorNode
	pump      *broadcast.Pump
	recording atomic.Bool

	soundFont  []byte
	httpClient *http.Client

	done   context.Context
	cancel context.CancelFunc
	closed bool
}

// New builds a session: a graph context at cfg.SampleRate, the effects
// library bound to it and a master gain feeding the destination.
func New(cfg config.Config, logger *sono_log.Logger, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	ctx, err := graph.NewContext(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s := &Session{
		cfg:      cfg,
		logger:   logger.Named("session"),
		ctx:      ctx,
		effects:  fx.NewLibrary(ctx),
		entries:  map[Key]*entry{},
		slots:    map[string]*effectSlot{},
		impulses: map[string]*graph.ConvolverNode{},
	}
	for _, o := range opts {
		o(s)
	}
	s.fetcher, err = loader.New(cfg.Loader, s.httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.master = ctx.NewGain()
	s.master.Gain.SetValue(cfg.Gains.Master)
	s.master.Connect(ctx.Destination())
	s.done, s.cancel = context.WithCancel(context.Background())
	s.logger.Infof("session started at %d Hz", cfg.SampleRate)
	return s, nil
}

// Graph returns the session's graph context, for rendering.
func (s *Session) Graph() *graph.Context { return s.ctx }

// CurrentTime is the graph clock in seconds.
func (s *Session) CurrentTime() float64 { return s.ctx.CurrentTime() }

// Close cancels pending loads, stops the recorder and closes the graph.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.stopRecorderLocked()
	s.ctx.Close()
	s.entries = map[Key]*entry{}
	s.logger.Infof("session closed")
}

func (s *Session) newSample(buf *graph.Buffer, rate float64) *entry {
	if rate <= 0 {
		rate = 1
	}
	src := s.ctx.NewBufferSource()
	src.SetBuffer(buf)
	src.PlaybackRate.SetValue(rate)
	gain := s.ctx.NewGain()
	gain.SetReleaseWhenIdle(true)
	return &entry{src: src, gain: gain}
}

// StoreFile registers a decoded buffer under playerID/instr as a new,
// not yet playing voice, replacing any previous entry.
func (s *Session) StoreFile(buf *graph.Buffer, playerID, instr string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.entries[SampleKey(playerID, instr)] = s.newSample(buf, rate)
}

// ClearFile drops the entry for playerID/instr.
func (s *Session) ClearFile(playerID, instr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, SampleKey(playerID, instr))
}

// StoreImpulse installs a convolver for buf in instr's impulse slot.
func (s *Session) StoreImpulse(buf *graph.Buffer, instr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	conv := s.ctx.NewConvolver()
	conv.SetBuffer(buf)
	s.setImpulseLocked(instr, conv)
}

// route connects src into instr's effect and impulse slots.
func (s *Session) route(src graph.Node, instr string) {
	dest := s.ctx.Destination()
	if slot := s.slots[instr]; slot != nil {
		src.Connect(slot.effect)
		if s.merger != nil {
			slot.effect.Connect(s.merger)
		}
		slot.effect.Connect(dest)
	}
	if conv := s.impulses[instr]; conv != nil {
		src.Connect(conv)
		if s.merger != nil {
			conv.Connect(s.merger)
		}
		conv.Connect(dest)
	}
}

// PlaySound starts the sample stored under playerID/instr. A key that is
// already playing gets a fresh voice with the same buffer and rate; a
// looping predecessor is stopped when the new voice starts, a one-shot one
// plays out.
func (s *Session) PlaySound(playerID, instr string, opts PlayOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := SampleKey(playerID, instr)
	e, ok := s.entries[k]
	if !ok || e.src == nil {
		s.logger.Debugf("play %s: no entry", k)
		return
	}
	when := s.ctx.CurrentTime() + opts.Delay
	if e.playing {
		old := e
		e = s.newSample(old.src.Buffer(), old.src.PlaybackRate.Value())
		s.entries[k] = e
		if old.src.Loop() {
			_ = old.src.Stop(when)
		}
	}
	if opts.PlaybackRate > 0 {
		e.src.PlaybackRate.SetValue(opts.PlaybackRate)
	}
	if instr == Keys {
		s.route(e.src, Keys)
	}
	e.src.SetLoop(opts.Loop)
	if s.merger != nil {
		e.src.Connect(s.merger)
	}
	e.src.Connect(e.gain)
	e.gain.Connect(s.ctx.Destination())
	if instr == Keys {
		e.gain.Gain.SetValue(s.cfg.Gains.Sample)
	}
	if err := e.src.Start(when); err != nil {
		s.logger.Warnf("play %s: %v", k, err)
		return
	}
	e.playing = true
	s.logger.Debugf("play %s at %.3f loop=%v", k, when, opts.Loop)
}

// StopSound stops playerID/instr after delay seconds and re-registers a
// paused voice with the same buffer and rate so it can be played again.
func (s *Session) StopSound(playerID, instr string, delay float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := SampleKey(playerID, instr)
	e, ok := s.entries[k]
	if !ok || e.src == nil {
		s.logger.Debugf("stop %s: no entry", k)
		return
	}
	rate := e.src.PlaybackRate.Value()
	if e.src.Started() {
		_ = e.src.Stop(s.ctx.CurrentTime() + delay)
	}
	s.entries[k] = s.newSample(e.src.Buffer(), rate)
}

// SetPlaybackRate changes the rate of the voice under playerID/instr.
func (s *Session) SetPlaybackRate(playerID, instr string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[SampleKey(playerID, instr)]; ok && e.src != nil {
		e.src.PlaybackRate.SetValue(rate)
	}
}

// IsPlaying reports whether the voice under playerID/instr was started and
// has not finished.
func (s *Session) IsPlaying(playerID, instr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[SampleKey(playerID, instr)]
	return ok && e.playing && !e.ended()
}

// NoteIsPlaying reports whether note has a sounding oscillator.
func (s *Session) NoteIsPlaying(note string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[NoteKey(note)]
	return ok && e.playing && !e.ended()
}

// Source returns the buffer source currently registered for playerID/instr.
func (s *Session) Source(playerID, instr string) (*graph.BufferSourceNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[SampleKey(playerID, instr)]
	if !ok || e.src == nil {
		return nil, false
	}
	return e.src, true
}

// PlayingCount counts sample voices of instr that are playing.
func (s *Session) PlayingCount(instr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if !k.IsNote() && k.Instrument == instr && e.playing && !e.ended() {
			n++
		}
	}
	return n
}

// Keys lists the registered keys in display order.
func (s *Session) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// PlayNote sounds note at freq, retuning it if it is already playing.
func (s *Session) PlayNote(freq float64, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	k := NoteKey(note)
	e, ok := s.entries[k]
	if !ok || !e.playing {
		e = &entry{osc: s.ctx.NewOscillator(), gain: s.ctx.NewGain()}
		e.gain.SetReleaseWhenIdle(true)
		s.entries[k] = e
	}
	e.osc.Frequency.SetValue(freq)
	if s.merger != nil {
		e.gain.Connect(s.merger)
	}
	e.osc.Connect(e.gain)
	e.gain.Connect(s.ctx.Destination())
	e.gain.Gain.SetValue(s.cfg.Gains.Note)
	s.route(e.gain, Keys)
	if !e.playing {
		if err := e.osc.Start(s.ctx.CurrentTime()); err != nil {
			s.logger.Warnf("play %s: %v", k, err)
			return
		}
	}
	e.playing = true
}

// StopNote stops note shortly, or with fade after a half second fade out,
// and removes it from the registry.
func (s *Session) StopNote(note string, fade bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := NoteKey(note)
	e, ok := s.entries[k]
	if !ok || !e.playing {
		return
	}
	now := s.ctx.CurrentTime()
	if fade {
		e.gain.Gain.LinearRampToValueAtTime(0, now+noteFadeLength)
		_ = e.osc.Stop(now + noteFadeLength)
	} else {
		_ = e.osc.Stop(now + noteStopDelay)
	}
	delete(s.entries, k)
}

// PlaySweep sounds the sweep voice at frequency x, detuned by 125-y cents.
// The wavetable, when given, is applied once per sweep voice.
func (s *Session) PlaySweep(x, y float64, wt *Wavetable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.sweep == nil {
		sw := &sweepVoice{osc: s.ctx.NewOscillator(), gain: s.ctx.NewGain()}
		sw.gain.SetReleaseWhenIdle(true)
		s.sweep = sw
	}
	sw := s.sweep
	if !sw.hasWave && wt != nil {
		wave, err := graph.NewPeriodicWave(wt.Real, wt.Imag, true)
		if err != nil {
			return fmt.Errorf("session: sweep wavetable: %w", err)
		}
		sw.osc.SetPeriodicWave(wave)
		sw.hasWave = true
	}
	sw.osc.Frequency.SetValue(x)
	sw.osc.Detune.SetValue(sweepDetuneRef - y)
	s.route(sw.osc, Pad)
	if s.merger != nil {
		sw.gain.Connect(s.merger)
	}
	sw.osc.Connect(sw.gain)
	sw.gain.Gain.SetValue(s.cfg.Gains.Sweep)
	sw.gain.Connect(s.master)
	if !sw.playing {
		if err := sw.osc.Start(s.ctx.CurrentTime()); err != nil {
			return fmt.Errorf("session: sweep: %w", err)
		}
		sw.playing = true
	}
	return nil
}

// StopSweep stops and drops the sweep voice.
func (s *Session) StopSweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweep == nil {
		return
	}
	if s.sweep.playing {
		_ = s.sweep.osc.Stop(s.ctx.CurrentTime() + sweepStopDelay)
	}
	s.sweep = nil
}

// SweepPlaying reports whether the sweep voice is sounding.
func (s *Session) SweepPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep != nil && s.sweep.playing
}
