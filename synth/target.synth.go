package synth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNoSoundFont   = errors.New("no soundfont configured")
	ErrUnknownTarget = errors.New("unknown render target")
)

type Kind int

const (
	KindSF2 Kind = iota + 1
	KindSFZ
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindSF2:
		return "sf2"
	case KindSFZ:
		return "sfz"
	case KindSystem:
		return "system"
	}
	return "unknown"
}

const DefaultSampleRate = 44100

// RenderTarget says how a MIDI file becomes audio. Only the fields of its
// Kind are meaningful.
type RenderTarget struct {
	Kind       Kind
	Path       string
	Name       string
	SampleRate int
}

func SF2(path string) RenderTarget {
	return RenderTarget{Kind: KindSF2, Path: path, SampleRate: DefaultSampleRate}
}

func SFZ(name string, sampleRate int) RenderTarget {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return RenderTarget{Kind: KindSFZ, Name: name, SampleRate: sampleRate}
}

func System() RenderTarget {
	return RenderTarget{Kind: KindSystem, SampleRate: DefaultSampleRate}
}

// Local reports whether the target renders on this machine.
func (t RenderTarget) Local() bool {
	return t.Kind == KindSF2 || t.Kind == KindSystem
}

func (t RenderTarget) String() string {
	switch t.Kind {
	case KindSF2:
		return "sf2:" + t.Path
	case KindSFZ:
		return fmt.Sprintf("sfz:%s@%d", t.Name, t.SampleRate)
	case KindSystem:
		return "system"
	}
	return "unknown"
}

// ParseTarget reads "sf2:<path>", "sfz:<name>[@<rate>]" or "system".
func ParseTarget(s string) (RenderTarget, error) {
	kind, rest, _ := strings.Cut(s, ":")
	switch strings.ToLower(kind) {
	case "sf2":
		if rest == "" {
			return RenderTarget{}, ErrNoSoundFont
		}
		return SF2(rest), nil
	case "sfz":
		name, rate, hasRate := strings.Cut(rest, "@")
		var sampleRate int
		if hasRate {
			r, err := strconv.Atoi(rate)
			if err != nil {
				return RenderTarget{}, fmt.Errorf("%w: bad sample rate %q", ErrUnknownTarget, rate)
			}
			sampleRate = r
		}
		return SFZ(name, sampleRate), nil
	case "system":
		return System(), nil
	}
	return RenderTarget{}, fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}
