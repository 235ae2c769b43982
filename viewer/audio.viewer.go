package viewer

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"pianoroll/synth"
	"pianoroll/transport"
)

const sampleRate = synth.DefaultSampleRate

// decodeWAV reads any WAV ebiten understands into interleaved stereo floats.
func decodeWAV(data []byte) ([]float32, int, error) {
	stream, err := wav.DecodeF32(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decoding wav: %w", err)
	}
	raw, err := io.ReadAll(stream)
	if err != nil {
		return nil, 0, fmt.Errorf("reading wav: %w", err)
	}
	var samples = make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, stream.SampleRate(), nil
}

// renderPCM synthesizes midi for target. SoundFonts skip the WAV round trip.
func renderPCM(ctx context.Context, renderer *synth.Renderer, target synth.RenderTarget, midi []byte) ([]float32, int, error) {
	if target.Kind == synth.KindSF2 {
		pcm, err := renderer.RenderSF2(ctx, target, midi)
		if err != nil {
			return nil, 0, err
		}
		return pcm.Samples, pcm.SampleRate, nil
	}
	data, err := renderer.Render(ctx, target, midi)
	if err != nil {
		return nil, 0, err
	}
	return decodeWAV(data)
}

type soundtrack struct {
	stream *transport.PCMStream
	audio  *transport.Audio
}

func newSoundtrack(ctx context.Context, renderer *synth.Renderer, target synth.RenderTarget, midi []byte) (*soundtrack, error) {
	samples, rate, err := renderPCM(ctx, renderer, target, midi)
	if err != nil {
		return nil, err
	}
	stream := transport.NewPCMStream(samples, rate, sampleRate)
	player, err := audio.NewContext(sampleRate).NewPlayerF32(stream)
	if err != nil {
		return nil, err
	}
	return &soundtrack{stream: stream, audio: transport.NewAudio(stream, player)}, nil
}

func (s *soundtrack) replace(ctx context.Context, renderer *synth.Renderer, target synth.RenderTarget, midi []byte) error {
	samples, rate, err := renderPCM(ctx, renderer, target, midi)
	if err != nil {
		return err
	}
	s.stream.Replace(samples, rate)
	s.audio.Reset()
	return nil
}
