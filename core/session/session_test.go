package session

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ingyamilmolinar/sono/internal/config"
	"github.com/ingyamilmolinar/sono/internal/fx"
	"github.com/ingyamilmolinar/sono/internal/graph"
	"github.com/ingyamilmolinar/sono/internal/loader"
	sono_log "github.com/ingyamilmolinar/sono/internal/log"
)

const testRate = 8000

var testLogger = sono_log.New(os.Stdout, sono_log.LevelError)

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.SampleRate = testRate
	cfg.Recorder.BufferSize = 256
	cfg.Loader.RequestsPerSecond = 0
	s, err := New(cfg, testLogger, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func render(s *Session, frames int) []float32 {
	out := make([]float32, frames)
	s.Graph().Render(out)
	return out
}

func peak(buf []float32) float64 {
	var p float64
	for _, v := range buf {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return p
}

func ones(n int) *graph.Buffer {
	data := make([]float32, n)
	for i := range data {
		data[i] = 1
	}
	b, _ := graph.BufferFromChannels(testRate, data)
	return b
}

func TestKeyString(t *testing.T) {
	if got := SampleKey("p1", Looper).String(); got != "p1_looper" {
		t.Fatalf("sample key = %q", got)
	}
	if got := NoteKey("C4").String(); got != "C4_osc" {
		t.Fatalf("note key = %q", got)
	}
	if NoteKey("x") == SampleKey("x", "osc") {
		t.Fatal("note and sample keys must not collide")
	}
}

func TestStoreThenPlay(t *testing.T) {
	s := newSession(t)
	s.StoreFile(ones(testRate), "p1", Looper, 1)
	if s.IsPlaying("p1", Looper) {
		t.Fatal("stored file must not be playing")
	}
	s.PlaySound("p1", Looper, PlayOptions{Loop: true})
	if !s.IsPlaying("p1", Looper) {
		t.Fatal("expected playing after PlaySound")
	}
	if p := peak(render(s, 512)); p != 1 {
		t.Fatalf("expected unity output for looper, got %v", p)
	}
}

func TestKeysSampleGain(t *testing.T) {
	s := newSession(t)
	s.StoreFile(ones(testRate), "a", Keys, 1)
	s.PlaySound("a", Keys, PlayOptions{})
	if p := peak(render(s, 512)); math.Abs(p-0.5) > 1e-6 {
		t.Fatalf("expected keys gain 0.5, got %v", p)
	}
}

func TestReplayAllocatesFreshVoice(t *testing.T) {
	s := newSession(t)
	buf := ones(testRate)
	s.StoreFile(buf, "p1", Keys, 1.5)
	s.PlaySound("p1", Keys, PlayOptions{})
	first, _ := s.Source("p1", Keys)

	s.PlaySound("p1", Keys, PlayOptions{})
	second, _ := s.Source("p1", Keys)
	if first == second {
		t.Fatal("expected a new source node")
	}
	if second.Buffer() != buf {
		t.Fatal("buffer not preserved")
	}
	if second.PlaybackRate.Value() != 1.5 {
		t.Fatalf("rate not preserved: %v", second.PlaybackRate.Value())
	}
	if !second.Started() {
		t.Fatal("new source not started")
	}
}

func TestReplayStopsLoopingPredecessor(t *testing.T) {
	s := newSession(t)
	s.StoreFile(ones(64), "p1", Looper, 1)
	s.PlaySound("p1", Looper, PlayOptions{Loop: true})
	first, _ := s.Source("p1", Looper)
	s.PlaySound("p1", Looper, PlayOptions{Loop: true})
	render(s, 256)
	if !first.Ended() {
		t.Fatal("replaced loop still running")
	}
	if p := peak(render(s, 256)); p != 1 {
		t.Fatalf("expected only the new loop at unity, got %v", p)
	}
}

func TestOneShotEndsPlaying(t *testing.T) {
	s := newSession(t)
	s.StoreFile(ones(100), "p1", "drums", 1)
	s.PlaySound("p1", "drums", PlayOptions{})
	render(s, 512)
	if s.IsPlaying("p1", "drums") {
		t.Fatal("one-shot reported playing after it ended")
	}
}

func TestStopSoundKeepsBufferAndRate(t *testing.T) {
	s := newSession(t)
	buf := ones(testRate)
	s.StoreFile(buf, "p1", Looper, 1)
	s.PlaySound("p1", Looper, PlayOptions{Loop: true, PlaybackRate: 0.75})
	playing, _ := s.Source("p1", Looper)

	s.StopSound("p1", Looper, 0)
	if s.IsPlaying("p1", Looper) {
		t.Fatal("expected paused entry after stop")
	}
	paused, _ := s.Source("p1", Looper)
	if paused == playing || paused.Buffer() != buf || paused.PlaybackRate.Value() != 0.75 {
		t.Fatal("paused entry must be a fresh node with the same buffer and rate")
	}
	render(s, 256)
	if !playing.Ended() {
		t.Fatal("stopped source did not end")
	}

	s.PlaySound("p1", Looper, PlayOptions{Loop: true})
	if !s.IsPlaying("p1", Looper) {
		t.Fatal("paused entry could not be restarted")
	}
}

func TestMissingKeysAreNoOps(t *testing.T) {
	s := newSession(t)
	s.PlaySound("ghost", Keys, PlayOptions{})
	s.StopSound("ghost", Keys, 0)
	s.StopNote("C4", false)
	s.StopSweep()
	s.ClearEffect(Keys)
	s.ClearImpulse(Keys)
	s.PlaySynth(440)
	s.StopSynth(440)
	s.SetPlaybackRate("ghost", Looper, 2)
	if len(s.Keys()) != 0 {
		t.Fatalf("no-op calls created entries: %v", s.Keys())
	}
	if _, ok := s.Source("ghost", Keys); ok {
		t.Fatal("unexpected source")
	}
}

func TestClearFile(t *testing.T) {
	s := newSession(t)
	s.StoreFile(ones(10), "p1", Keys, 1)
	s.ClearFile("p1", Keys)
	if _, ok := s.Source("p1", Keys); ok {
		t.Fatal("entry survived ClearFile")
	}
}

func TestPlayingCount(t *testing.T) {
	s := newSession(t)
	for _, id := range []string{"a", "b", "c"} {
		s.StoreFile(ones(testRate), id, Looper, 1)
	}
	s.StoreFile(ones(testRate), "a", Keys, 1)
	s.PlaySound("a", Looper, PlayOptions{Loop: true})
	s.PlaySound("b", Looper, PlayOptions{Loop: true})
	s.PlaySound("a", Keys, PlayOptions{})
	if n := s.PlayingCount(Looper); n != 2 {
		t.Fatalf("expected 2 playing loops, got %d", n)
	}
	s.StopSound("a", Looper, 0)
	if n := s.PlayingCount(Looper); n != 1 {
		t.Fatalf("expected 1 playing loop, got %d", n)
	}
}

func TestPlayNoteAndRetune(t *testing.T) {
	s := newSession(t)
	s.PlayNote(440, "A4")
	if !s.NoteIsPlaying("A4") {
		t.Fatal("note not playing")
	}
	e := s.entries[NoteKey("A4")]
	if p := peak(render(s, 1024)); math.Abs(p-0.3) > 0.01 {
		t.Fatalf("expected note gain 0.3, got %v", p)
	}

	s.PlayNote(220, "A4")
	if s.entries[NoteKey("A4")] != e {
		t.Fatal("retune must reuse the playing oscillator")
	}
	if f := e.osc.Frequency.Value(); f != 220 {
		t.Fatalf("frequency = %v", f)
	}
}

func TestStopNote(t *testing.T) {
	s := newSession(t)
	s.PlayNote(440, "A4")
	render(s, 256)
	s.StopNote("A4", false)
	if s.NoteIsPlaying("A4") {
		t.Fatal("note still registered")
	}
	out := render(s, testRate/2)
	if peak(out[:testRate/20]) == 0 {
		t.Fatal("note cut before its stop delay")
	}
	if p := peak(out[testRate/5:]); p != 0 {
		t.Fatalf("note still sounding after stop, peak %v", p)
	}
}

func TestStopNoteFades(t *testing.T) {
	s := newSession(t)
	s.PlayNote(440, "A4")
	render(s, 256)
	s.StopNote("A4", true)
	out := render(s, testRate)
	early := peak(out[:testRate/20])
	late := peak(out[testRate*2/5 : testRate*9/20])
	if early == 0 || late >= early {
		t.Fatalf("expected a fade out, early=%v late=%v", early, late)
	}
	if p := peak(out[testRate*3/5:]); p != 0 {
		t.Fatalf("still sounding after fade, peak %v", p)
	}
}

func TestPlaySweep(t *testing.T) {
	s := newSession(t)
	wt := &Wavetable{Real: []float64{0, 1}, Imag: []float64{0, 0}}
	if err := s.PlaySweep(300, 100, wt); err != nil {
		t.Fatalf("PlaySweep: %v", err)
	}
	osc := s.sweep.osc
	if d := osc.Detune.Value(); d != 25 {
		t.Fatalf("detune = %v, want 25", d)
	}
	if osc.Type() != graph.Custom {
		t.Fatal("wavetable not applied")
	}
	if err := s.PlaySweep(500, 125, nil); err != nil {
		t.Fatalf("PlaySweep: %v", err)
	}
	if osc.Frequency.Value() != 500 || osc.Detune.Value() != 0 {
		t.Fatal("sweep not retuned")
	}
	if peak(render(s, 512)) == 0 {
		t.Fatal("sweep silent")
	}

	s.StopSweep()
	if s.SweepPlaying() {
		t.Fatal("sweep still registered")
	}
	render(s, 256)
	if !osc.Ended() {
		t.Fatal("sweep oscillator not stopped")
	}
}

func TestEffectSlot(t *testing.T) {
	s := newSession(t)
	if err := s.ApplyEffect("overdrive", Keys); err != nil {
		t.Fatalf("ApplyEffect: %v", err)
	}
	if id, ok := s.Effect(Keys); !ok || id != "overdrive" {
		t.Fatalf("slot = %q %v", id, ok)
	}
	eff := s.slots[Keys].effect
	s.PlayNote(440, "A4")
	if !eff.Connected(s.Graph().Destination()) {
		t.Fatal("effect not routed to the destination")
	}

	s.ClearEffect(Keys)
	if _, ok := s.Effect(Keys); ok {
		t.Fatal("slot not cleared")
	}
	if eff.Connected(s.Graph().Destination()) {
		t.Fatal("cleared effect still connected")
	}

	if err := s.ApplyEffect("nope", Keys); !errors.Is(err, fx.ErrUnknownEffect) {
		t.Fatalf("expected ErrUnknownEffect, got %v", err)
	}
}

func TestImpulseSlot(t *testing.T) {
	s := newSession(t)
	if err := s.ApplyImpulse("room", Pad); err != nil {
		t.Fatalf("ApplyImpulse: %v", err)
	}
	if !s.HasImpulse(Pad) {
		t.Fatal("impulse slot empty")
	}
	if err := s.PlaySweep(220, 125, nil); err != nil {
		t.Fatal(err)
	}
	if !s.impulses[Pad].Connected(s.Graph().Destination()) {
		t.Fatal("impulse not routed")
	}
	s.ClearImpulse(Pad)
	if s.HasImpulse(Pad) {
		t.Fatal("impulse slot not cleared")
	}

	s.StoreImpulse(ones(32), Keys)
	if !s.HasImpulse(Keys) {
		t.Fatal("stored impulse missing")
	}
	if err := s.ApplyImpulse("nope", Keys); !errors.Is(err, fx.ErrUnknownEffect) {
		t.Fatalf("expected ErrUnknownEffect, got %v", err)
	}
}

func TestSynthSlot(t *testing.T) {
	s := newSession(t)
	if err := s.LoadSynth("FMSynth"); err != nil {
		t.Fatalf("LoadSynth: %v", err)
	}
	if k, ok := s.SynthKind(); !ok || k != "FMSynth" {
		t.Fatalf("kind = %q", k)
	}
	s.PlaySynth(330)
	if peak(render(s, 1024)) == 0 {
		t.Fatal("synth silent")
	}
	s.StopSynth(330)
	s.ClearSynth()
	if _, ok := s.SynthKind(); ok {
		t.Fatal("synth slot not cleared")
	}
	if err := s.LoadSynth("SoundFont"); err == nil {
		t.Fatal("expected error without soundfont")
	}
}

type recordSender struct {
	mu     sync.Mutex
	chunks [][]float32
}

func (r *recordSender) Send(_ context.Context, chunk []float32) error {
	r.mu.Lock()
	r.chunks = append(r.chunks, chunk)
	r.mu.Unlock()
	return nil
}

func (r *recordSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

func TestRecorderBroadcast(t *testing.T) {
	s := newSession(t)
	snd := &recordSender{}
	if err := s.InitRecorder(snd); err != nil {
		t.Fatalf("InitRecorder: %v", err)
	}
	s.PlayNote(440, "A4")

	render(s, 1024)
	time.Sleep(20 * time.Millisecond)
	if n := snd.count(); n != 0 {
		t.Fatalf("sent %d chunks while not recording", n)
	}

	s.SetRecording(true)
	render(s, 1024)
	deadline := time.Now().Add(time.Second)
	for snd.count() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := snd.count(); n != 4 {
		t.Fatalf("expected 4 chunks of 256 frames, got %d", n)
	}
	snd.mu.Lock()
	chunk := snd.chunks[0]
	snd.mu.Unlock()
	if len(chunk) != 256 || peak(chunk) == 0 {
		t.Fatalf("unexpected chunk len=%d peak=%v", len(chunk), peak(chunk))
	}

	s.StopRecorder()
	if s.RecorderActive() {
		t.Fatal("recorder still active")
	}
	render(s, 1024)
	time.Sleep(20 * time.Millisecond)
	if n := snd.count(); n != 4 {
		t.Fatalf("chunks sent after StopRecorder: %d", n)
	}
}

func wavFile(t *testing.T, samples []int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, testRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: testRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestLoadFileAndSounds(t *testing.T) {
	body := wavFile(t, []int{16384, 16384, 16384, 16384})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/kick.wav", "/snare.wav":
			w.Write(body)
		case "/junk.wav":
			w.Write([]byte("not audio"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := newSession(t)
	ctx := context.Background()
	if err := s.LoadFile(ctx, srv.URL+"/kick.wav", "p1", Looper, 1.25); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	src, ok := s.Source("p1", Looper)
	if !ok || src.Buffer().Length() != 4 || src.PlaybackRate.Value() != 1.25 {
		t.Fatal("loaded file not stored")
	}

	keys := []SoundKey{{URL: srv.URL + "/kick.wav", KeyCode: "KeyA"}, {URL: srv.URL + "/snare.wav", KeyCode: "KeyS"}}
	if err := s.LoadSounds(ctx, keys); err != nil {
		t.Fatalf("LoadSounds: %v", err)
	}
	for _, k := range []string{"KeyA", "KeyS"} {
		if _, ok := s.Source(k, Keys); !ok {
			t.Fatalf("%s not stored", k)
		}
	}

	if err := s.LoadImpulse(ctx, srv.URL+"/kick.wav", Pad); err != nil || !s.HasImpulse(Pad) {
		t.Fatalf("LoadImpulse: %v", err)
	}

	if err := s.LoadFile(ctx, srv.URL+"/missing.wav", "p2", Looper, 1); !errors.Is(err, loader.ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
	if err := s.LoadFile(ctx, srv.URL+"/junk.wav", "p2", Looper, 1); !errors.Is(err, graph.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, ok := s.Source("p2", Looper); ok {
		t.Fatal("failed load stored an entry")
	}
}

func TestCloseCancelsLoads(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := newSession(t)
	errc := make(chan error, 1)
	go func() { errc <- s.LoadFile(context.Background(), srv.URL+"/slow.wav", "p1", Keys, 1) }()
	time.Sleep(20 * time.Millisecond)
	s.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("load not cancelled by Close")
	}
}
