package graph

import "math"

// schedule tracks the start/stop window of a single-use source.
type schedule struct {
	started    bool
	startFrame int64
	stopFrame  int64
	done       bool
}

func (s *schedule) start(n *nodeBase, when float64) error {
	if s.started {
		return ErrInvalidState
	}
	s.started = true
	s.startFrame = n.ctx.frameOf(when)
	s.stopFrame = math.MaxInt64
	n.ctx.sources[n] = struct{}{}
	return nil
}

func (s *schedule) stop(n *nodeBase, when float64) error {
	if !s.started {
		return ErrInvalidState
	}
	f := n.ctx.frameOf(when)
	if f < s.stopFrame {
		s.stopFrame = f
	}
	return nil
}

func (s *schedule) active(frame int64) bool {
	return s.started && !s.done && frame >= s.startFrame && frame < s.stopFrame
}

func (s *schedule) ended() bool { return s.done }

// finishIfPast marks the source done once the quantum has passed its stop frame.
func (s *schedule) finishIfPast(frame int64) {
	if s.started && frame+Quantum >= s.stopFrame {
		s.done = true
	}
}
