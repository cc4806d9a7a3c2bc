package graph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

const testRate = 8000

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c, err := NewContext(testRate)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return c
}

func render(c *Context, frames int) []float32 {
	out := make([]float32, frames)
	c.Render(out)
	return out
}

func peak(buf []float32) float64 {
	var p float64
	for _, v := range buf {
		if a := math.Abs(float64(v)); a > p {
			p = a
		}
	}
	return p
}

func rampBuffer(t *testing.T, n int) *Buffer {
	t.Helper()
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i+1) / float32(n)
	}
	b, err := BufferFromChannels(testRate, data)
	if err != nil {
		t.Fatalf("BufferFromChannels: %v", err)
	}
	return b
}

func TestOscillatorThroughGain(t *testing.T) {
	c := newTestContext(t)
	osc := c.NewOscillator()
	osc.Frequency.SetValue(100)
	g := c.NewGain()
	g.Gain.SetValue(0.3)
	osc.Connect(g)
	g.Connect(c.Destination())
	if err := osc.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out := render(c, testRate/10)
	if p := peak(out); math.Abs(p-0.3) > 0.01 {
		t.Fatalf("expected peak ~0.3, got %v", p)
	}
	if got := c.CurrentTime(); got < 0.1 {
		t.Fatalf("clock did not advance: %v", got)
	}
}

func TestSourceStartsOnce(t *testing.T) {
	c := newTestContext(t)
	src := c.NewBufferSource()
	if err := src.Stop(0); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Stop before Start: expected ErrInvalidState, got %v", err)
	}
	if err := src.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Start(0); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second Start: expected ErrInvalidState, got %v", err)
	}
}

func TestDelayedStart(t *testing.T) {
	c := newTestContext(t)
	osc := c.NewOscillator()
	osc.SetType(Square)
	osc.Connect(c.Destination())
	osc.Start(0.05) // 400 frames

	out := render(c, 800)
	for i := 0; i < 400; i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d non-zero before start", i)
		}
	}
	if out[400] != 1 {
		t.Fatalf("expected square wave to start at frame 400, got %v", out[400])
	}
}

func TestBufferSourceEndsAndReleasesGain(t *testing.T) {
	c := newTestContext(t)
	src := c.NewBufferSource()
	src.SetBuffer(rampBuffer(t, 300))
	g := c.NewGain()
	g.SetReleaseWhenIdle(true)
	src.Connect(g)
	g.Connect(c.Destination())
	src.Start(0)

	out := render(c, 512)
	if out[0] == 0 || out[299] == 0 {
		t.Fatalf("expected buffer content, got %v %v", out[0], out[299])
	}
	if out[300] != 0 {
		t.Fatalf("expected silence after buffer end, got %v", out[300])
	}
	if !src.Ended() {
		t.Fatal("source should have ended")
	}
	if src.Connected(g) || g.Connected(c.Destination()) {
		t.Fatal("ended voice should be released from the graph")
	}
	if n := c.activeSources(); n != 0 {
		t.Fatalf("expected no active sources, got %d", n)
	}
}

func TestLoopingSourceStopsAtTime(t *testing.T) {
	c := newTestContext(t)
	src := c.NewBufferSource()
	src.SetBuffer(rampBuffer(t, 100))
	src.SetLoop(true)
	src.Connect(c.Destination())
	src.Start(0)
	src.Stop(float64(1000) / testRate)

	out := render(c, 1280)
	if out[150] == 0 || out[999] == 0 {
		t.Fatal("looping source went silent early")
	}
	if math.Abs(float64(out[100]-out[0])) > 1e-6 {
		t.Fatalf("loop should wrap: out[0]=%v out[100]=%v", out[0], out[100])
	}
	for i := 1000; i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d not silent after stop", i)
		}
	}
	if !src.Ended() {
		t.Fatal("stopped source should report ended")
	}
}

func TestPlaybackRateDoublesSpeed(t *testing.T) {
	c := newTestContext(t)
	src := c.NewBufferSource()
	src.SetBuffer(rampBuffer(t, 400))
	src.PlaybackRate.SetValue(2)
	src.Connect(c.Destination())
	src.Start(0)

	out := render(c, 256)
	if out[199] == 0 || out[200] != 0 {
		t.Fatalf("expected 400 frames to play in 200, got out[199]=%v out[200]=%v", out[199], out[200])
	}
}

func TestFanOutProcessesOnce(t *testing.T) {
	c := newTestContext(t)
	osc := c.NewOscillator()
	osc.SetType(Square)
	a, b := c.NewGain(), c.NewGain()
	osc.Connect(a)
	osc.Connect(b)
	osc.Connect(a)
	a.Connect(c.Destination())
	b.Connect(c.Destination())
	osc.Start(0)

	out := render(c, Quantum)
	if out[0] != 2 {
		t.Fatalf("expected both branches summed to 2, got %v", out[0])
	}
	osc.Disconnect(b)
	out = render(c, Quantum)
	if out[0] != 1 {
		t.Fatalf("expected single branch after disconnect, got %v", out[0])
	}
}

func TestConvolverDelaysByImpulse(t *testing.T) {
	c := newTestContext(t)
	const delay = 200
	ir := make([]float32, delay+1)
	ir[delay] = 1
	irBuf, _ := BufferFromChannels(testRate, ir)

	cv := c.NewConvolver()
	cv.SetBuffer(irBuf)
	src := c.NewBufferSource()
	src.SetBuffer(rampBuffer(t, 300))
	src.Connect(cv)
	cv.Connect(c.Destination())
	src.Start(0)

	out := render(c, 768)
	want := rampBuffer(t, 300).Channel(0)
	for i := 0; i < delay; i++ {
		if math.Abs(float64(out[i])) > 1e-4 {
			t.Fatalf("frame %d: expected silence before impulse, got %v", i, out[i])
		}
	}
	for i := 0; i < 300; i++ {
		if math.Abs(float64(out[i+delay]-want[i])) > 1e-4 {
			t.Fatalf("frame %d: got %v want %v", i+delay, out[i+delay], want[i])
		}
	}
}

func TestScriptProcessorDeliversBlocks(t *testing.T) {
	c := newTestContext(t)
	sp, err := c.NewScriptProcessor(256)
	if err != nil {
		t.Fatalf("NewScriptProcessor: %v", err)
	}
	var blocks [][]float32
	sp.SetOnAudioProcess(func(b []float32) { blocks = append(blocks, b) })
	osc := c.NewOscillator()
	osc.SetType(Square)
	osc.Connect(sp)
	sp.Connect(c.Destination())
	osc.Start(0)

	out := render(c, 4*Quantum)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if len(blocks[0]) != 256 || blocks[0][0] != 1 {
		t.Fatalf("unexpected block: len=%d first=%v", len(blocks[0]), blocks[0][0])
	}
	if peak(out) != 0 {
		t.Fatal("script processor output should be silent")
	}
	if _, err := c.NewScriptProcessor(1000); err == nil {
		t.Fatal("expected error for non power of two buffer size")
	}
}

func TestParamLinearRamp(t *testing.T) {
	c := newTestContext(t)
	g := c.NewGain()
	g.Gain.SetValue(1)
	g.Gain.LinearRampToValueAtTime(0, 0.1)
	osc := c.NewOscillator()
	osc.SetType(Square)
	osc.Connect(g)
	g.Connect(c.Destination())
	osc.Start(0)

	out := render(c, 1024)
	if out[0] != 1 {
		t.Fatalf("ramp should start at 1, got %v", out[0])
	}
	if v := math.Abs(float64(out[400])); math.Abs(v-0.5) > 0.01 {
		t.Fatalf("expected ~0.5 halfway through ramp, got %v", v)
	}
	if out[900] != 0 {
		t.Fatalf("expected silence after ramp, got %v", out[900])
	}
	if v := g.Gain.Value(); v != 0 {
		t.Fatalf("expected final value 0, got %v", v)
	}
}

func TestPeriodicWave(t *testing.T) {
	if _, err := NewPeriodicWave([]float64{0, 1}, []float64{0}, false); err == nil {
		t.Fatal("expected length mismatch error")
	}
	w, err := NewPeriodicWave([]float64{0, 0}, []float64{0, 3}, false)
	if err != nil {
		t.Fatalf("NewPeriodicWave: %v", err)
	}
	if v := w.at(0.25); math.Abs(v-1) > 1e-3 {
		t.Fatalf("normalized sine peak expected 1, got %v", v)
	}
	raw, _ := NewPeriodicWave([]float64{0, 0}, []float64{0, 3}, true)
	if v := raw.at(0.25); math.Abs(v-3) > 1e-3 {
		t.Fatalf("unnormalized peak expected 3, got %v", v)
	}

	c := newTestContext(t)
	osc := c.NewOscillator()
	osc.SetPeriodicWave(w)
	if osc.Type() != Custom {
		t.Fatalf("expected custom type, got %v", osc.Type())
	}
	if err := osc.SetType(Custom); err == nil {
		t.Fatal("SetType(Custom) should fail")
	}
}

func TestSuspendedContextIsSilent(t *testing.T) {
	c := newTestContext(t)
	osc := c.NewOscillator()
	osc.SetType(Square)
	osc.Connect(c.Destination())
	osc.Start(0)
	c.Suspend()
	if p := peak(render(c, 256)); p != 0 || c.CurrentTime() != 0 {
		t.Fatalf("suspended context rendered audio (peak %v, t=%v)", p, c.CurrentTime())
	}
	c.Resume()
	if p := peak(render(c, 256)); p == 0 {
		t.Fatal("resumed context should render")
	}
	c.Close()
	if c.State() != StateClosed {
		t.Fatalf("expected closed, got %v", c.State())
	}
}

// wavBytes builds a 16-bit PCM WAV file in memory.
func wavBytes(sampleRate, channels int, data []int16) []byte {
	var b bytes.Buffer
	dataSize := uint32(len(data) * 2)
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, 36+dataSize)
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, dataSize)
	for _, v := range data {
		binary.Write(&b, binary.LittleEndian, v)
	}
	return b.Bytes()
}

func TestDecodeAudioDataWAV(t *testing.T) {
	data := []int16{16384, -16384, 0, 32767}
	buf, err := DecodeAudioData(wavBytes(22050, 2, data))
	if err != nil {
		t.Fatalf("DecodeAudioData: %v", err)
	}
	if buf.SampleRate() != 22050 || buf.NumberOfChannels() != 2 || buf.Length() != 2 {
		t.Fatalf("unexpected shape rate=%d ch=%d len=%d", buf.SampleRate(), buf.NumberOfChannels(), buf.Length())
	}
	if buf.Channel(0)[0] != 0.5 || buf.Channel(1)[0] != -0.5 {
		t.Fatalf("unexpected samples %v %v", buf.Channel(0)[0], buf.Channel(1)[0])
	}
}

func TestDecodeAudioDataRejectsUnknown(t *testing.T) {
	if _, err := DecodeAudioData([]byte("not audio at all")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
