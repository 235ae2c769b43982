package viewport

import "pianoroll/midiparser"

const (
	MinZoom          = 0.5
	MaxZoom          = 3.0
	MinMagnification = 0.25
	MaxMagnification = 4.0
)

type Config struct {
	ApproachWidthPixels float64 `json:"approachWidthPixels"`
	LookaheadSeconds    float64 `json:"lookaheadSeconds"`
	KeyHeightPixels     float64 `json:"keyHeightPixels"`
	PixelsPerSecondBase float64 `json:"pixelsPerSecondBase"`
	KeyboardWidthPixels float64 `json:"keyboardWidthPixels"`
	PianoRangeStart     uint8   `json:"pianoRangeStart"`
	PianoRangeEnd       uint8   `json:"pianoRangeEnd"`
}

func DefaultConfig() Config {
	return Config{
		ApproachWidthPixels: 24,
		LookaheadSeconds:    8,
		KeyHeightPixels:     8,
		PixelsPerSecondBase: 120,
		KeyboardWidthPixels: 96,
		PianoRangeStart:     midiparser.LowestPitch,
		PianoRangeEnd:       midiparser.HighestPitch,
	}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) Right() float64 {
	return r.X + r.W
}

func (r Rect) Bottom() float64 {
	return r.Y + r.H
}

func (r Rect) CenterY() float64 {
	return r.Y + r.H/2
}

type Key struct {
	Pitch uint8 `json:"pitch"`
	Rect  Rect  `json:"rect"`
	Black bool  `json:"black"`
}
