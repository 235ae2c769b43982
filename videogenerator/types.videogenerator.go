package videogenerator

import (
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"pianoroll/synth"
	"pianoroll/timeline"
)

type Color struct {
	R float64
	G float64
	B float64
}

type ScreenResolution [2]float64

type Options struct {
	// Speed scales playback. Frame time and audio tempo follow it together.
	Speed float64
	Zoom  float64
	// Target renders the soundtrack. A zero Target makes a silent video.
	Target synth.RenderTarget
}

type canvas struct {
	dc   *gg.Context
	face font.Face
}

type plannedFrame struct {
	index int
	frame timeline.Frame
}
