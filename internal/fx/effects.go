package fx

import (
	"math"

	"github.com/ingyamilmolinar/sono/internal/utils"
)

// Delay is a feedback echo.
type Delay struct {
	buf      []float32
	pos      int
	Feedback float64
	Mix      float64
}

func NewDelay(sampleRate int, seconds, feedback, mix float64) *Delay {
	n := int(seconds * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	return &Delay{
		buf:      make([]float32, n),
		Feedback: utils.Clamp(feedback, 0, 0.95),
		Mix:      utils.Clamp(mix, 0, 1),
	}
}

func (d *Delay) Process(in, out []float32, _ int64) {
	for i, x := range in {
		y := d.buf[d.pos]
		d.buf[d.pos] = x + float32(d.Feedback)*y
		d.pos = (d.pos + 1) % len(d.buf)
		out[i] = float32(1-d.Mix)*x + float32(d.Mix)*y
	}
}

// Chorus mixes the input with an LFO-modulated short delay.
type Chorus struct {
	buf   []float32
	pos   int
	phase float64
	rate  float64
	base  float64
	depth float64
	Mix   float64
}

func NewChorus(sampleRate int, rateHz, depthMs, mix float64) *Chorus {
	sr := float64(sampleRate)
	base := 0.015 * sr
	depth := depthMs / 1000 * sr
	return &Chorus{
		buf:   make([]float32, int(base+depth)+2),
		rate:  rateHz / sr,
		base:  base,
		depth: depth,
		Mix:   utils.Clamp(mix, 0, 1),
	}
}

func (c *Chorus) Process(in, out []float32, _ int64) {
	n := len(c.buf)
	for i, x := range in {
		c.buf[c.pos] = x
		d := c.base + c.depth*0.5*(1+math.Sin(2*math.Pi*c.phase))
		rp := float64(c.pos) - d
		for rp < 0 {
			rp += float64(n)
		}
		j := int(rp)
		frac := rp - float64(j)
		a := c.buf[j%n]
		b := c.buf[(j+1)%n]
		wet := float64(a) + (float64(b)-float64(a))*frac
		out[i] = float32((1-c.Mix)*float64(x) + c.Mix*wet)
		c.pos = (c.pos + 1) % n
		c.phase += c.rate
		c.phase -= math.Floor(c.phase)
	}
}

// Overdrive is a tanh waveshaper with output compensation.
type Overdrive struct {
	Drive  float64
	Output float64
}

func NewOverdrive(drive, outputGain float64) *Overdrive {
	return &Overdrive{Drive: math.Max(drive, 1), Output: outputGain}
}

func (o *Overdrive) Process(in, out []float32, _ int64) {
	norm := math.Tanh(o.Drive)
	for i, x := range in {
		out[i] = float32(math.Tanh(float64(x)*o.Drive) / norm * o.Output)
	}
}

// FilterType selects the biquad response.
type FilterType int

const (
	LowPass FilterType = iota
	HighPass
	BandPass
)

// Biquad is an RBJ cookbook second order filter.
type Biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func NewBiquad(sampleRate int, typ FilterType, freq, q float64) *Biquad {
	w0 := 2 * math.Pi * utils.Clamp(freq, 10, float64(sampleRate)/2-1) / float64(sampleRate)
	alpha := math.Sin(w0) / (2 * math.Max(q, 0.01))
	cw := math.Cos(w0)
	var b0, b1, b2 float64
	switch typ {
	case HighPass:
		b0, b1, b2 = (1+cw)/2, -(1 + cw), (1+cw)/2
	case BandPass:
		b0, b1, b2 = alpha, 0, -alpha
	default:
		b0, b1, b2 = (1-cw)/2, 1-cw, (1-cw)/2
	}
	a0 := 1 + alpha
	return &Biquad{
		b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
		a1: -2 * cw / a0, a2: (1 - alpha) / a0,
	}
}

func (f *Biquad) Process(in, out []float32, _ int64) {
	for i, v := range in {
		x := float64(v)
		y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
		f.x2, f.x1 = f.x1, x
		f.y2, f.y1 = f.y1, y
		out[i] = float32(y)
	}
}

// Tremolo modulates amplitude with a sine LFO.
type Tremolo struct {
	rate      float64
	phase     float64
	Intensity float64
}

func NewTremolo(sampleRate int, rateHz, intensity float64) *Tremolo {
	return &Tremolo{rate: rateHz / float64(sampleRate), Intensity: utils.Clamp(intensity, 0, 1)}
}

func (t *Tremolo) Process(in, out []float32, _ int64) {
	for i, x := range in {
		mod := 1 - t.Intensity*0.5*(1+math.Sin(2*math.Pi*t.phase))
		out[i] = float32(float64(x) * mod)
		t.phase += t.rate
		t.phase -= math.Floor(t.phase)
	}
}

// Compressor is a feed-forward peak compressor with hard knee.
type Compressor struct {
	threshold float64
	ratio     float64
	attack    float64
	release   float64
	makeup    float64
	env       float64
}

func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) *Compressor {
	sr := float64(sampleRate)
	return &Compressor{
		threshold: utils.Clamp(thresholdDB, -60, 0),
		ratio:     utils.Clamp(ratio, 1, 100),
		attack:    math.Exp(-1 / (utils.Clamp(attackMs, 0.1, 1000) / 1000 * sr)),
		release:   math.Exp(-1 / (utils.Clamp(releaseMs, 1, 5000) / 1000 * sr)),
		makeup:    utils.DBToGain(utils.Clamp(makeupDB, 0, 24)),
	}
}

func (c *Compressor) Process(in, out []float32, _ int64) {
	for i, v := range in {
		x := math.Abs(float64(v))
		coef := c.release
		if x > c.env {
			coef = c.attack
		}
		c.env = coef*c.env + (1-coef)*x
		gain := 1.0
		if lv := utils.GainToDB(c.env); lv > c.threshold {
			reduced := c.threshold + (lv-c.threshold)/c.ratio
			gain = utils.DBToGain(reduced - lv)
		}
		out[i] = float32(float64(v) * gain * c.makeup)
	}
}

// Bitcrusher quantizes amplitude and holds samples to reduce the rate.
type Bitcrusher struct {
	levels float64
	hold   int
	count  int
	last   float32
}

func NewBitcrusher(bits, downsample int) *Bitcrusher {
	if bits < 1 {
		bits = 1
	}
	if downsample < 1 {
		downsample = 1
	}
	return &Bitcrusher{levels: math.Pow(2, float64(bits-1)), hold: downsample}
}

func (b *Bitcrusher) Process(in, out []float32, _ int64) {
	for i, x := range in {
		if b.count == 0 {
			b.last = float32(math.Round(float64(x)*b.levels) / b.levels)
		}
		b.count = (b.count + 1) % b.hold
		out[i] = b.last
	}
}
