package graph

// Node is a vertex of the audio graph.
type Node interface {
	// Connect routes this node's output into dst. Connecting twice is a no-op.
	Connect(dst Node)
	// Disconnect removes the route to dst.
	Disconnect(dst Node)
	// DisconnectAll removes every outgoing route.
	DisconnectAll()
	// Connected reports whether this node currently feeds dst.
	Connected(dst Node) bool

	base() *nodeBase
}

type processor interface {
	process(in, out []float32, frame int64)
}

type ender interface {
	ended() bool
}

type passthrough struct{}

func (passthrough) process(in, out []float32, _ int64) { copy(out, in) }

type nodeBase struct {
	ctx     *Context
	self    processor
	inputs  []*nodeBase
	outputs []*nodeBase

	mix        []float32
	out        []float32
	renderedAt int64

	releaseWhenIdle bool
}

func (n *nodeBase) init(ctx *Context, p processor) {
	n.ctx = ctx
	n.self = p
	n.mix = make([]float32, Quantum)
	n.out = make([]float32, Quantum)
	n.renderedAt = -1
}

func (n *nodeBase) base() *nodeBase { return n }

func (n *nodeBase) Connect(dst Node) {
	d := dst.base()
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if indexOf(n.outputs, d) >= 0 {
		return
	}
	n.outputs = append(n.outputs, d)
	d.inputs = append(d.inputs, n)
}

func (n *nodeBase) Disconnect(dst Node) {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	n.unlink(dst.base())
}

func (n *nodeBase) DisconnectAll() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	for len(n.outputs) > 0 {
		n.unlink(n.outputs[0])
	}
}

func (n *nodeBase) Connected(dst Node) bool {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return indexOf(n.outputs, dst.base()) >= 0
}

func (n *nodeBase) unlink(d *nodeBase) {
	if i := indexOf(n.outputs, d); i >= 0 {
		n.outputs = append(n.outputs[:i], n.outputs[i+1:]...)
	}
	if i := indexOf(d.inputs, n); i >= 0 {
		d.inputs = append(d.inputs[:i], d.inputs[i+1:]...)
	}
}

// releaseOutputs drops every outgoing route and cascades to downstream
// nodes marked release-when-idle that end up with no inputs.
func (n *nodeBase) releaseOutputs() {
	outs := append([]*nodeBase(nil), n.outputs...)
	for _, d := range outs {
		n.unlink(d)
		if d.releaseWhenIdle && len(d.inputs) == 0 {
			d.releaseOutputs()
		}
	}
}

// pull renders this node for the quantum starting at frame. The result is
// cached so fan-out nodes are processed once.
func (n *nodeBase) pull(frame int64) []float32 {
	if n.renderedAt == frame {
		return n.out
	}
	n.renderedAt = frame
	clear(n.mix)
	for _, in := range n.inputs {
		o := in.pull(frame)
		for i := range n.mix {
			n.mix[i] += o[i]
		}
	}
	n.self.process(n.mix, n.out, frame)
	return n.out
}

func indexOf(s []*nodeBase, n *nodeBase) int {
	for i, v := range s {
		if v == n {
			return i
		}
	}
	return -1
}

// Destination is the final node; whatever reaches it is rendered.
type Destination struct {
	nodeBase
}
