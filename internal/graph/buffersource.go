package graph

import "math"

// BufferSourceNode plays a Buffer once or in a loop. Like every source it can
// only be started once; replaying a buffer needs a new node.
type BufferSourceNode struct {
	nodeBase
	schedule

	// PlaybackRate scales playback speed and pitch.
	PlaybackRate *Param

	buffer *Buffer
	loop   bool
	pos    float64
}

func (c *Context) NewBufferSource() *BufferSourceNode {
	s := &BufferSourceNode{PlaybackRate: newParam(c, 1)}
	s.init(c, s)
	return s
}

func (s *BufferSourceNode) Buffer() *Buffer {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.buffer
}

func (s *BufferSourceNode) SetBuffer(b *Buffer) {
	s.ctx.mu.Lock()
	s.buffer = b
	s.ctx.mu.Unlock()
}

func (s *BufferSourceNode) Loop() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.loop
}

func (s *BufferSourceNode) SetLoop(loop bool) {
	s.ctx.mu.Lock()
	s.loop = loop
	s.ctx.mu.Unlock()
}

func (s *BufferSourceNode) Start(when float64) error {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.schedule.start(&s.nodeBase, when)
}

func (s *BufferSourceNode) Stop(when float64) error {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.schedule.stop(&s.nodeBase, when)
}

func (s *BufferSourceNode) Started() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.started
}

// Ended reports whether playback finished, by reaching the stop time or the
// end of a non-looping buffer.
func (s *BufferSourceNode) Ended() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.done
}

func (s *BufferSourceNode) process(_, out []float32, frame int64) {
	b := s.buffer
	if b == nil || b.Length() == 0 {
		clear(out)
		if s.active(frame) && !s.loop {
			s.done = true
		}
		s.finishIfPast(frame)
		return
	}
	n := float64(b.Length())
	ratio := float64(b.sampleRate) / float64(s.ctx.sampleRate)
	for i := range out {
		f := frame + int64(i)
		if !s.active(f) {
			out[i] = 0
			continue
		}
		if s.pos >= n {
			if !s.loop {
				s.done = true
				out[i] = 0
				continue
			}
			s.pos = math.Mod(s.pos, n)
		}
		idx := int(s.pos)
		frac := s.pos - float64(idx)
		a := b.frame(idx)
		next := idx + 1
		if next >= b.Length() {
			if s.loop {
				next = 0
			} else {
				next = idx
			}
		}
		out[i] = float32(a + (b.frame(next)-a)*frac)
		s.pos += math.Max(0, s.PlaybackRate.valueAt(f)) * ratio
	}
	s.finishIfPast(frame)
}
