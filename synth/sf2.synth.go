package synth

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

const (
	renderBlock = 1024
	// tailSeconds lets release envelopes ring out after the last event.
	tailSeconds = 2.0
)

func (r *Renderer) soundFont(path string) (*meltysynth.SoundFont, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sf, ok := r.soundFonts[path]; ok {
		return sf, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening soundfont: %w", err)
	}
	defer f.Close()

	sf, err := meltysynth.NewSoundFont(f)
	if err != nil {
		return nil, fmt.Errorf("reading soundfont %s: %w", path, err)
	}
	r.soundFonts[path] = sf
	return sf, nil
}

// RenderSF2 synthesizes midi with a SoundFont on this machine.
func (r *Renderer) RenderSF2(ctx context.Context, target RenderTarget, midi []byte) (PCM, error) {
	if target.Path == "" {
		return PCM{}, ErrNoSoundFont
	}
	var sampleRate = target.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	sf, err := r.soundFont(target.Path)
	if err != nil {
		return PCM{}, err
	}
	midiFile, err := meltysynth.NewMidiFile(bytes.NewReader(midi))
	if err != nil {
		return PCM{}, fmt.Errorf("reading midi for synthesis: %w", err)
	}

	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	synthesizer, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return PCM{}, fmt.Errorf("creating synthesizer: %w", err)
	}
	sequencer := meltysynth.NewMidiFileSequencer(synthesizer)
	sequencer.Play(midiFile, false)

	var totalFrames = int((midiFile.GetLength().Seconds() + tailSeconds) * float64(sampleRate))
	var out = make([]float32, 0, totalFrames*2)
	left := make([]float32, renderBlock)
	right := make([]float32, renderBlock)

	for pos := 0; pos < totalFrames; pos += renderBlock {
		if err := ctx.Err(); err != nil {
			return PCM{}, err
		}
		n := renderBlock
		if pos+n > totalFrames {
			n = totalFrames - pos
		}
		sequencer.Render(left[:n], right[:n])
		for i := 0; i < n; i++ {
			out = append(out, left[i], right[i])
		}
	}

	return PCM{Samples: out, SampleRate: sampleRate}, nil
}
