package session

import (
	"bytes"
	"fmt"

	"github.com/ingyamilmolinar/sono/internal/graph"
	"github.com/ingyamilmolinar/sono/internal/synth"
)

// ApplyEffect builds effectID and puts it in instr's effect slot. Voices
// started afterwards are routed through it.
func (s *Session) ApplyEffect(effectID, instr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	eff, err := s.effects.New(effectID)
	if err != nil {
		return fmt.Errorf("session: apply effect to %s: %w", instr, err)
	}
	if old := s.slots[instr]; old != nil {
		old.effect.DisconnectAll()
	}
	s.slots[instr] = &effectSlot{id: effectID, effect: eff}
	s.logger.Debugf("effect %s on %s", effectID, instr)
	return nil
}

// ClearEffect disconnects instr's effect and empties the slot.
func (s *Session) ClearEffect(instr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slots[instr]
	if slot == nil {
		return
	}
	slot.effect.DisconnectAll()
	delete(s.slots, instr)
}

// Effect returns the id of the effect in instr's slot.
func (s *Session) Effect(instr string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot := s.slots[instr]; slot != nil {
		return slot.id, true
	}
	return "", false
}

// ApplyImpulse puts the impulse preset effectID in instr's impulse slot.
func (s *Session) ApplyImpulse(effectID, instr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.effects.Impulse(effectID)
	if err != nil {
		return fmt.Errorf("session: apply impulse to %s: %w", instr, err)
	}
	s.setImpulseLocked(instr, conv)
	return nil
}

func (s *Session) setImpulseLocked(instr string, conv *graph.ConvolverNode) {
	if old := s.impulses[instr]; old != nil {
		old.DisconnectAll()
	}
	s.impulses[instr] = conv
}

// ClearImpulse disconnects instr's convolver and empties the slot.
func (s *Session) ClearImpulse(instr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.impulses[instr]
	if conv == nil {
		return
	}
	conv.DisconnectAll()
	delete(s.impulses, instr)
}

// HasImpulse reports whether instr's impulse slot is filled.
func (s *Session) HasImpulse(instr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.impulses[instr] != nil
}

// LoadSynth replaces the synth slot with a new synth of kind.
func (s *Session) LoadSynth(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var opts []synth.Option
	if kind == synth.KindSoundFont {
		if len(s.soundFont) == 0 {
			return fmt.Errorf("session: load synth %s: no soundfont configured", kind)
		}
		opts = append(opts, synth.WithSoundFont(bytes.NewReader(s.soundFont)))
	}
	syn, err := synth.New(s.ctx, kind, opts...)
	if err != nil {
		return fmt.Errorf("session: load synth: %w", err)
	}
	if s.synth != nil {
		s.synth.DisconnectAll()
	}
	syn.Connect(s.ctx.Destination())
	s.synth = syn
	s.logger.Debugf("synth %s loaded", kind)
	return nil
}

// ClearSynth empties the synth slot.
func (s *Session) ClearSynth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.synth != nil {
		s.synth.DisconnectAll()
		s.synth = nil
	}
}

// SynthKind returns the kind of the loaded synth.
func (s *Session) SynthKind() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.synth == nil {
		return "", false
	}
	return s.synth.Kind, true
}

// PlaySynth triggers the loaded synth at freq now.
func (s *Session) PlaySynth(freq float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.synth == nil {
		return
	}
	if s.merger != nil {
		s.synth.Connect(s.merger)
	}
	s.synth.TriggerAttack(freq, s.ctx.CurrentTime())
}

// StopSynth releases the loaded synth now.
func (s *Session) StopSynth(freq float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.synth == nil {
		return
	}
	s.synth.TriggerRelease(s.ctx.CurrentTime())
}
