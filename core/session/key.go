package session

import "fmt"

// Instruments with routing slots.
const (
	Keys   = "keys"
	Looper = "looper"
	Pad    = "pad"
)

type keyKind uint8

const (
	sampleKey keyKind = iota
	noteKey
)

// Key identifies one voice in the registry: either a sample owned by a
// player and instrument, or an oscillator note.
type Key struct {
	kind       keyKind
	PlayerID   string
	Instrument string
	Note       string
}

// SampleKey returns the key of a stored sample.
func SampleKey(playerID, instrument string) Key {
	return Key{kind: sampleKey, PlayerID: playerID, Instrument: instrument}
}

// NoteKey returns the key of an oscillator note such as "C4".
func NoteKey(note string) Key {
	return Key{kind: noteKey, Note: note}
}

// IsNote reports whether k names an oscillator note.
func (k Key) IsNote() bool { return k.kind == noteKey }

// String returns the display form, "player_instrument" or "note_osc".
func (k Key) String() string {
	if k.kind == noteKey {
		return fmt.Sprintf("%s_osc", k.Note)
	}
	return fmt.Sprintf("%s_%s", k.PlayerID, k.Instrument)
}
