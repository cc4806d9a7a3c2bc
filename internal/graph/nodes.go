package graph

import "fmt"

// GainNode scales its input.
type GainNode struct {
	nodeBase
	Gain *Param
}

func (c *Context) NewGain() *GainNode {
	g := &GainNode{Gain: newParam(c, 1)}
	g.init(c, g)
	return g
}

// SetReleaseWhenIdle makes the node drop its outputs once the last source
// feeding it has ended. Used for per-voice gains.
func (g *GainNode) SetReleaseWhenIdle(v bool) {
	g.ctx.mu.Lock()
	g.releaseWhenIdle = v
	g.ctx.mu.Unlock()
}

func (g *GainNode) process(in, out []float32, frame int64) {
	if !g.Gain.ramping {
		v := float32(g.Gain.value)
		for i := range out {
			out[i] = in[i] * v
		}
		return
	}
	for i := range out {
		out[i] = in[i] * float32(g.Gain.valueAt(frame+int64(i)))
	}
}

// ChannelMergerNode collects several sources into one bus. The graph is mono,
// so inputs are summed; the input count is kept for routing bookkeeping.
type ChannelMergerNode struct {
	nodeBase
	numInputs int
}

func (c *Context) NewChannelMerger(numInputs int) (*ChannelMergerNode, error) {
	if numInputs < 1 || numInputs > 32 {
		return nil, fmt.Errorf("graph: channel merger inputs %d out of range [1,32]", numInputs)
	}
	m := &ChannelMergerNode{numInputs: numInputs}
	m.init(c, passthrough{})
	return m, nil
}

func (m *ChannelMergerNode) NumberOfInputs() int { return m.numInputs }

// Processor is implemented by custom effect and instrument nodes. Process is
// called on the render goroutine with the context lock held, once per
// quantum; in and out are Quantum frames long. frame is the index of the
// first frame in the quantum.
type Processor interface {
	Process(in, out []float32, frame int64)
}

// ProcessorNode hosts a Processor in the graph.
type ProcessorNode struct {
	nodeBase
	p Processor
}

func (c *Context) NewProcessor(p Processor) *ProcessorNode {
	n := &ProcessorNode{p: p}
	n.init(c, n)
	return n
}

// Processor returns the hosted processor.
func (n *ProcessorNode) Processor() Processor { return n.p }

// Do runs fn with the context lock held, for processor state changes that
// must not race with rendering.
func (n *ProcessorNode) Do(fn func()) {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	fn()
}

func (n *ProcessorNode) process(in, out []float32, frame int64) {
	n.p.Process(in, out, frame)
}

// ScriptProcessorNode hands fixed-size blocks of its input to a callback.
// Its output is silent.
type ScriptProcessorNode struct {
	nodeBase
	bufferSize int
	acc        []float32
	fill       int
	onProcess  func(block []float32)
}

// NewScriptProcessor returns a processor with the given block size, which
// must be a power of two between 256 and 16384.
func (c *Context) NewScriptProcessor(bufferSize int) (*ScriptProcessorNode, error) {
	if bufferSize < 256 || bufferSize > 16384 || bufferSize&(bufferSize-1) != 0 {
		return nil, fmt.Errorf("graph: script processor buffer size %d invalid", bufferSize)
	}
	s := &ScriptProcessorNode{bufferSize: bufferSize, acc: make([]float32, bufferSize)}
	s.init(c, s)
	return s, nil
}

func (s *ScriptProcessorNode) BufferSize() int { return s.bufferSize }

// SetOnAudioProcess installs the block callback. The callback runs on the
// render goroutine with the context lock held and must not call back into
// the graph. The block is a fresh copy owned by the callback.
func (s *ScriptProcessorNode) SetOnAudioProcess(fn func(block []float32)) {
	s.ctx.mu.Lock()
	s.onProcess = fn
	s.ctx.mu.Unlock()
}

func (s *ScriptProcessorNode) process(in, out []float32, _ int64) {
	clear(out)
	off := 0
	for off < len(in) {
		k := copy(s.acc[s.fill:], in[off:])
		s.fill += k
		off += k
		if s.fill == s.bufferSize {
			if s.onProcess != nil {
				s.onProcess(append([]float32(nil), s.acc...))
			}
			s.fill = 0
		}
	}
}
