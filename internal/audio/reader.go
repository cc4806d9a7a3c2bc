// Package audio plays a rendered graph on the sound card and provides the
// built-in drum kit.
package audio

// Renderer produces mono float32 frames. *graph.Context implements it.
type Renderer interface {
	Render(out []float32)
}

// pcmReader pulls frames from a Renderer and encodes them as interleaved
// signed 16-bit little-endian PCM, duplicating the mono signal across
// channels. It implements io.Reader for oto.Player.
type pcmReader struct {
	src      Renderer
	channels int
	buf      []float32
}

func newPCMReader(src Renderer, channels int) *pcmReader {
	if channels < 1 {
		channels = 1
	}
	return &pcmReader{src: src, channels: channels}
}

func (r *pcmReader) Read(p []byte) (int, error) {
	frameBytes := 2 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make([]float32, frames)
	}
	buf := r.buf[:frames]
	r.src.Render(buf)
	off := 0
	for _, f := range buf {
		sum := float64(f)
		if sum > 1 {
			sum = 1
		} else if sum < -1 {
			sum = -1
		}
		v := int16(sum * 32767)
		for c := 0; c < r.channels; c++ {
			p[off] = byte(v)
			p[off+1] = byte(v >> 8)
			off += 2
		}
	}
	return off, nil
}
