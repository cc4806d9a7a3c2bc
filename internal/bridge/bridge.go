//go:build js && wasm

// Package bridge exposes a session to the host page as functions on a
// global "sono" object.
package bridge

import (
	"context"
	"errors"
	"syscall/js"

	"github.com/ingyamilmolinar/sono/core/loop"
	"github.com/ingyamilmolinar/sono/core/session"
	"github.com/ingyamilmolinar/sono/internal/audio"
	"github.com/ingyamilmolinar/sono/internal/broadcast"
	"github.com/ingyamilmolinar/sono/internal/config"
	sono_log "github.com/ingyamilmolinar/sono/internal/log"
)

// Bridge owns the session behind the exported functions.
type Bridge struct {
	cfg    config.Config
	logger *sono_log.Logger
	sess   *session.Session
	clock  *loop.Clock
	out    *audio.Output
	funcs  []js.Func
}

func New(cfg config.Config, logger *sono_log.Logger) *Bridge {
	return &Bridge{cfg: cfg, logger: logger.Named("bridge")}
}

// Register installs the exported functions on globalThis.sono.
func (b *Bridge) Register() {
	obj := js.Global().Get("Object").New()
	set := func(name string, fn func(args []js.Value) any) {
		f := js.FuncOf(func(_ js.Value, args []js.Value) any { return fn(args) })
		b.funcs = append(b.funcs, f)
		obj.Set(name, f)
	}

	set("initSono", b.initSono)
	set("close", func([]js.Value) any { b.Close(); return nil })

	set("playNote", b.withSession(func(s *session.Session, a []js.Value) any {
		s.PlayNote(a[0].Float(), a[1].String())
		return nil
	}))
	set("stopNote", b.withSession(func(s *session.Session, a []js.Value) any {
		s.StopNote(a[0].String(), optBool(a, 1))
		return nil
	}))
	set("playSweep", b.withSession(func(s *session.Session, a []js.Value) any {
		pos := a[0]
		var wt *session.Wavetable
		if len(a) > 1 && a[1].Truthy() {
			wt = &session.Wavetable{Real: floats(a[1].Get("real")), Imag: floats(a[1].Get("imag"))}
		}
		return errValue(s.PlaySweep(pos.Get("x").Float(), pos.Get("y").Float(), wt))
	}))
	set("stopSweep", b.withSession(func(s *session.Session, a []js.Value) any {
		s.StopSweep()
		return nil
	}))
	set("playSound", b.withSession(func(s *session.Session, a []js.Value) any {
		s.PlaySound(a[0].String(), a[1].String(), session.PlayOptions{
			Loop:         optBool(a, 2),
			Delay:        optFloat(a, 3),
			PlaybackRate: optFloat(a, 4),
		})
		return nil
	}))
	set("stopSound", b.withSession(func(s *session.Session, a []js.Value) any {
		s.StopSound(a[0].String(), a[1].String(), optFloat(a, 2))
		return nil
	}))
	set("clearFile", b.withSession(func(s *session.Session, a []js.Value) any {
		s.ClearFile(a[0].String(), a[1].String())
		return nil
	}))
	set("getIsPlaying", b.withSession(func(s *session.Session, a []js.Value) any {
		return s.IsPlaying(a[0].String(), a[1].String())
	}))

	set("startLoop", b.withSession(func(_ *session.Session, a []js.Value) any {
		d, err := b.clock.Start(jsLoop(a[0]))
		if err != nil {
			return errValue(err)
		}
		return d
	}))
	set("stopLoop", b.withSession(func(_ *session.Session, a []js.Value) any {
		d, err := b.clock.Stop(jsLoop(a[0]))
		if err != nil {
			return errValue(err)
		}
		return d
	}))
	set("changeBpm", b.withSession(func(_ *session.Session, a []js.Value) any {
		return errValue(b.clock.ChangeBPM(jsLoop(a[0]), a[1].Float()))
	}))

	set("applyEffect", b.withSession(func(s *session.Session, a []js.Value) any {
		return errValue(s.ApplyEffect(a[0].String(), a[1].String()))
	}))
	set("clearEffect", b.withSession(func(s *session.Session, a []js.Value) any {
		s.ClearEffect(a[0].String())
		return nil
	}))
	set("applyImpulse", b.withSession(func(s *session.Session, a []js.Value) any {
		return errValue(s.ApplyImpulse(a[0].String(), a[1].String()))
	}))
	set("clearImpulse", b.withSession(func(s *session.Session, a []js.Value) any {
		s.ClearImpulse(a[0].String())
		return nil
	}))

	set("loadSynth", b.withSession(func(s *session.Session, a []js.Value) any {
		return errValue(s.LoadSynth(a[0].String()))
	}))
	set("clearSynth", b.withSession(func(s *session.Session, a []js.Value) any {
		s.ClearSynth()
		return nil
	}))
	set("playSynth", b.withSession(func(s *session.Session, a []js.Value) any {
		s.PlaySynth(a[0].Float())
		return nil
	}))
	set("stopSynth", b.withSession(func(s *session.Session, a []js.Value) any {
		s.StopSynth(optFloat(a, 0))
		return nil
	}))

	set("initRecorder", b.withSession(func(s *session.Session, a []js.Value) any {
		return errValue(s.InitRecorder(jsSender{conn: a[0]}))
	}))
	set("stopRecorder", b.withSession(func(s *session.Session, a []js.Value) any {
		s.StopRecorder()
		return nil
	}))
	set("setRecording", b.withSession(func(s *session.Session, a []js.Value) any {
		s.SetRecording(a[0].Truthy())
		return nil
	}))

	set("loadFile", b.withSession(func(s *session.Session, a []js.Value) any {
		url, id, instr, rate := a[0].String(), a[1].String(), a[2].String(), optFloat(a, 3)
		return promise(func(ctx context.Context) error { return s.LoadFile(ctx, url, id, instr, rate) })
	}))
	set("loadSounds", b.withSession(func(s *session.Session, a []js.Value) any {
		arr := a[0]
		keys := make([]session.SoundKey, arr.Length())
		for i := range keys {
			sk := arr.Index(i)
			keys[i] = session.SoundKey{
				URL:     sk.Get("sound").Get("file").String(),
				KeyCode: sk.Get("key_code").Get("code").String(),
			}
		}
		return promise(func(ctx context.Context) error { return s.LoadSounds(ctx, keys) })
	}))
	set("loadImpulse", b.withSession(func(s *session.Session, a []js.Value) any {
		url, instr := a[0].String(), a[1].String()
		return promise(func(ctx context.Context) error { return s.LoadImpulse(ctx, url, instr) })
	}))

	js.Global().Set("sono", obj)
}

func (b *Bridge) initSono([]js.Value) any {
	if b.sess != nil {
		return nil
	}
	s, err := session.New(b.cfg, b.logger)
	if err != nil {
		return errValue(err)
	}
	out, err := audio.Open(s.Graph(), audio.Options{
		SampleRate:   b.cfg.SampleRate,
		Channels:     2,
		BufferFrames: b.cfg.OutputBufferFrames,
	}, b.logger)
	if err != nil {
		s.Close()
		return errValue(err)
	}
	b.sess, b.out = s, out
	b.clock = loop.NewClock(s, b.logger)
	return nil
}

// Close tears down the session and releases the exported functions.
func (b *Bridge) Close() {
	if b.out != nil {
		b.out.Close()
	}
	if b.sess != nil {
		b.sess.Close()
	}
	b.sess, b.out, b.clock = nil, nil, nil
}

// Release frees the js.Func handles; the bridge is unusable afterwards.
func (b *Bridge) Release() {
	b.Close()
	for _, f := range b.funcs {
		f.Release()
	}
	b.funcs = nil
	js.Global().Delete("sono")
}

var errNotInitialized = errors.New("bridge: initSono has not been called")

func (b *Bridge) withSession(fn func(*session.Session, []js.Value) any) func([]js.Value) any {
	return func(args []js.Value) any {
		if b.sess == nil {
			b.logger.Warnf("%v", errNotInitialized)
			return errValue(errNotInitialized)
		}
		return fn(b.sess, args)
	}
}

// jsSender forwards chunks to a WebSocket-like object with a send method.
type jsSender struct {
	conn js.Value
}

func (j jsSender) Send(_ context.Context, chunk []float32) error {
	arr := js.Global().Get("Float32Array").New(len(chunk))
	bytes := js.Global().Get("Uint8Array").New(arr.Get("buffer"))
	js.CopyBytesToJS(bytes, broadcast.EncodeChunk(nil, chunk))
	j.conn.Call("send", arr)
	return nil
}

func jsLoop(v js.Value) loop.Loop {
	sel := v.Get("selected")
	return loop.Loop{
		ID: v.Get("id").String(),
		Selected: loop.Selected{
			BPM:         sel.Get("bpm").Float(),
			OriginalBPM: sel.Get("originalBpm").Float(),
		},
	}
}

func promise(fn func(ctx context.Context) error) js.Value {
	var handler js.Func
	handler = js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			defer handler.Release()
			if err := fn(context.Background()); err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(js.Undefined())
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

func errValue(err error) any {
	if err == nil {
		return nil
	}
	return js.Global().Get("Error").New(err.Error())
}

func optBool(a []js.Value, i int) bool {
	return len(a) > i && a[i].Truthy()
}

func optFloat(a []js.Value, i int) float64 {
	if len(a) <= i || a[i].IsUndefined() || a[i].IsNull() {
		return 0
	}
	return a[i].Float()
}

func floats(v js.Value) []float64 {
	out := make([]float64, v.Length())
	for i := range out {
		out[i] = v.Index(i).Float()
	}
	return out
}
