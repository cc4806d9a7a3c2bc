package graph

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// ConvolverNode convolves its input with an impulse response using uniformly
// partitioned overlap-save FFT convolution, one partition per quantum.
type ConvolverNode struct {
	nodeBase

	buffer    *Buffer
	normalize bool

	parts [][]complex128
	fdl   [][]complex128
	head  int
	prev  []float64
	scale float64
}

// NewConvolver returns a convolver with normalization enabled and no impulse
// response; it outputs silence until SetBuffer is called.
func (c *Context) NewConvolver() *ConvolverNode {
	cv := &ConvolverNode{normalize: true, prev: make([]float64, Quantum)}
	cv.init(c, cv)
	return cv
}

// SetNormalize controls whether the impulse response is scaled to unit
// energy. It applies to the next SetBuffer.
func (cv *ConvolverNode) SetNormalize(v bool) {
	cv.ctx.mu.Lock()
	cv.normalize = v
	cv.ctx.mu.Unlock()
}

func (cv *ConvolverNode) Buffer() *Buffer {
	cv.ctx.mu.Lock()
	defer cv.ctx.mu.Unlock()
	return cv.buffer
}

// SetBuffer installs the impulse response and resets the convolution state.
func (cv *ConvolverNode) SetBuffer(b *Buffer) {
	var (
		parts [][]complex128
		scale = 1.0
	)
	if b != nil && b.Length() > 0 {
		ir := resampleMono(b, cv.ctx.sampleRate)
		var energy float64
		for _, v := range ir {
			energy += v * v
		}
		if energy > 0 {
			scale = 1 / math.Sqrt(energy)
		}
		for off := 0; off < len(ir); off += Quantum {
			seg := make([]float64, 2*Quantum)
			copy(seg, ir[off:min(off+Quantum, len(ir))])
			parts = append(parts, fft.FFTReal(seg))
		}
	}

	cv.ctx.mu.Lock()
	defer cv.ctx.mu.Unlock()
	cv.buffer = b
	cv.parts = parts
	cv.fdl = make([][]complex128, len(parts))
	cv.head = 0
	clear(cv.prev)
	cv.scale = 1
	if cv.normalize {
		cv.scale = scale
	}
}

func (cv *ConvolverNode) process(in, out []float32, _ int64) {
	if len(cv.parts) == 0 {
		clear(out)
		return
	}
	x := make([]float64, 2*Quantum)
	copy(x, cv.prev)
	for i, v := range in {
		x[Quantum+i] = float64(v)
		cv.prev[i] = float64(v)
	}
	cv.fdl[cv.head] = fft.FFTReal(x)

	p := len(cv.parts)
	acc := make([]complex128, 2*Quantum)
	for k, h := range cv.parts {
		xk := cv.fdl[(cv.head-k+p)%p]
		if xk == nil {
			continue
		}
		for i := range acc {
			acc[i] += h[i] * xk[i]
		}
	}
	cv.head = (cv.head + 1) % p

	y := fft.IFFT(acc)
	for i := range out {
		out[i] = float32(real(y[Quantum+i]) * cv.scale)
	}
}

// resampleMono mixes b to mono and linearly resamples it to rate.
func resampleMono(b *Buffer, rate int) []float64 {
	if b.sampleRate == rate {
		out := make([]float64, b.Length())
		for i := range out {
			out[i] = b.frame(i)
		}
		return out
	}
	ratio := float64(b.sampleRate) / float64(rate)
	n := int(float64(b.Length()) / ratio)
	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		a := b.frame(idx)
		next := a
		if idx+1 < b.Length() {
			next = b.frame(idx + 1)
		}
		out[i] = a + (next-a)*frac
	}
	return out
}
