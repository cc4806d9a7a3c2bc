package session

import (
	"context"
	"fmt"

	"github.com/ingyamilmolinar/sono/internal/graph"
)

// SoundKey pairs a sample URL with the key code it is stored under for the
// keys instrument.
type SoundKey struct {
	URL     string
	KeyCode string
}

// bind derives a context that is also cancelled when the session closes.
func (s *Session) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.done, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) fetchDecode(ctx context.Context, url string) (*graph.Buffer, error) {
	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	buf, err := graph.DecodeAudioData(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return buf, nil
}

// LoadFile fetches and decodes url and stores it under playerID/instr.
func (s *Session) LoadFile(ctx context.Context, url, playerID, instr string, rate float64) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()
	buf, err := s.fetchDecode(ctx, url)
	if err != nil {
		return fmt.Errorf("session: load file: %w", err)
	}
	s.StoreFile(buf, playerID, instr, rate)
	return nil
}

// LoadSounds fetches every sample in keys concurrently and stores each under
// its key code for the keys instrument. Nothing is stored if any fetch or
// decode fails.
func (s *Session) LoadSounds(ctx context.Context, keys []SoundKey) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()
	urls := make([]string, len(keys))
	for i, k := range keys {
		urls[i] = k.URL
	}
	bodies, err := s.fetcher.FetchAll(ctx, urls)
	if err != nil {
		return fmt.Errorf("session: load sounds: %w", err)
	}
	bufs := make([]*graph.Buffer, len(bodies))
	for i, data := range bodies {
		bufs[i], err = graph.DecodeAudioData(data)
		if err != nil {
			return fmt.Errorf("session: load sounds: decode %s: %w", urls[i], err)
		}
	}
	for i, k := range keys {
		s.StoreFile(bufs[i], k.KeyCode, Keys, 1)
	}
	return nil
}

// LoadImpulse fetches an impulse response and stores it in instr's slot.
func (s *Session) LoadImpulse(ctx context.Context, url, instr string) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()
	buf, err := s.fetchDecode(ctx, url)
	if err != nil {
		return fmt.Errorf("session: load impulse: %w", err)
	}
	s.StoreImpulse(buf, instr)
	return nil
}
