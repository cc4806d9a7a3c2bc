package session

import (
	"fmt"

	"github.com/ingyamilmolinar/sono/internal/broadcast"
)

// InitRecorder taps the master gain and a channel merger into a script
// processor and forwards each full block to sender while recording is on.
// Voices started afterwards also feed the merger.
func (s *Session) InitRecorder(sender broadcast.Sender) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session: init recorder: session closed")
	}
	s.stopRecorderLocked()

	rec, err := s.ctx.NewScriptProcessor(s.cfg.Recorder.BufferSize)
	if err != nil {
		return fmt.Errorf("session: init recorder: %w", err)
	}
	merger, err := s.ctx.NewChannelMerger(s.cfg.Recorder.MergerChannels)
	if err != nil {
		return fmt.Errorf("session: init recorder: %w", err)
	}
	pump := broadcast.NewPump(sender, s.cfg.Recorder.QueueDepth, s.logger)
	rec.SetOnAudioProcess(func(block []float32) {
		if s.recording.Load() {
			pump.Offer(block)
		}
	})
	s.master.Connect(rec)
	merger.Connect(rec)
	rec.Connect(s.ctx.Destination())

	s.recorder, s.merger, s.pump = rec, merger, pump
	s.logger.Infof("recorder ready: %d frame blocks, %d merger inputs", rec.BufferSize(), merger.NumberOfInputs())
	return nil
}

// StopRecorder detaches the block handler and the recorder from the
// destination.
func (s *Session) StopRecorder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRecorderLocked()
}

func (s *Session) stopRecorderLocked() {
	if s.recorder == nil {
		return
	}
	s.recorder.SetOnAudioProcess(nil)
	s.recorder.Disconnect(s.ctx.Destination())
	s.master.Disconnect(s.recorder)
	s.merger.DisconnectAll()
	s.pump.Close()
	s.recorder, s.merger, s.pump = nil, nil, nil
}

// SetRecording turns forwarding of recorded blocks on or off.
func (s *Session) SetRecording(on bool) { s.recording.Store(on) }

func (s *Session) Recording() bool { return s.recording.Load() }

// RecorderActive reports whether InitRecorder has been called and the
// recorder not stopped since.
func (s *Session) RecorderActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder != nil
}
