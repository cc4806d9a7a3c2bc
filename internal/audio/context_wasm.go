//go:build js && wasm && !test

package audio

import "github.com/ebitengine/oto/v3"

// The browser only unlocks audio after a user gesture, so readiness is not
// awaited here.
func platformInitContext(sampleRate, channels int) (*oto.Context, error) {
	c, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	go func() { <-ready }()
	_ = c.Resume()
	return c, nil
}
