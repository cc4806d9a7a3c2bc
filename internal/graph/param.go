package graph

// Param is an automatable node parameter. A linear ramp, when set, takes
// precedence until its end time, after which the ramp target becomes the value.
type Param struct {
	ctx   *Context
	value float64

	ramping   bool
	rampFrom  float64
	rampTo    float64
	rampStart int64
	rampEnd   int64
}

func newParam(ctx *Context, v float64) *Param {
	return &Param{ctx: ctx, value: v}
}

// Value returns the parameter value at the current time.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(p.ctx.frame)
}

// SetValue sets the value immediately, cancelling any ramp.
func (p *Param) SetValue(v float64) {
	p.ctx.mu.Lock()
	p.value = v
	p.ramping = false
	p.ctx.mu.Unlock()
}

// LinearRampToValueAtTime ramps from the current value to v, reaching it at
// context time when.
func (p *Param) LinearRampToValueAtTime(v, when float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	now := p.ctx.frame
	start := p.valueAt(now)
	end := p.ctx.frameOf(when)
	if end <= now {
		p.value = v
		p.ramping = false
		return
	}
	p.ramping = true
	p.rampFrom = start
	p.rampTo = v
	p.rampStart = now
	p.rampEnd = end
	p.value = v
}

func (p *Param) valueAt(frame int64) float64 {
	if !p.ramping {
		return p.value
	}
	if frame >= p.rampEnd {
		return p.rampTo
	}
	if frame <= p.rampStart {
		return p.rampFrom
	}
	t := float64(frame-p.rampStart) / float64(p.rampEnd-p.rampStart)
	return p.rampFrom + (p.rampTo-p.rampFrom)*t
}
