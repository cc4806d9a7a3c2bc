//go:build !js && !test

package audio

import "github.com/ebitengine/oto/v3"

func platformInitContext(sampleRate, channels int) (*oto.Context, error) {
	c, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return c, nil
}
