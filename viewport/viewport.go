package viewport

import (
	"sort"

	"pianoroll/midiparser"
	"pianoroll/util"
)

// Viewport holds zoom, pan and magnification and maps (time, pitch) to scene
// coordinates. The impact line sits at scene x = 0. A Viewport is not safe for
// concurrent use; callers copy it by value to take a snapshot.
type Viewport struct {
	cfg           Config
	zoom          float64
	magnification float64
	pan           Point
}

func New(cfg Config) *Viewport {
	return &Viewport{cfg: cfg, zoom: 1, magnification: 1}
}

func (v *Viewport) Config() Config {
	return v.cfg
}

func (v *Viewport) SetZoom(zoom float64) float64 {
	v.zoom = util.Clamp(zoom, MinZoom, MaxZoom)
	return v.zoom
}

func (v *Viewport) Zoom() float64 {
	return v.zoom
}

func (v *Viewport) SetMagnification(m float64) float64 {
	v.magnification = util.Clamp(m, MinMagnification, MaxMagnification)
	return v.magnification
}

func (v *Viewport) Magnification() float64 {
	return v.magnification
}

func (v *Viewport) SetPan(x, y float64) {
	v.pan = Point{X: x, Y: y}
}

func (v *Viewport) PanBy(dx, dy float64) {
	v.pan.X += dx
	v.pan.Y += dy
}

func (v *Viewport) Pan() Point {
	return v.pan
}

// PixelsPerSecond is the effective scroll rate, base rate times zoom.
func (v *Viewport) PixelsPerSecond() float64 {
	return v.cfg.PixelsPerSecondBase * v.zoom
}

// Transform places the scene on screen. The keyboard occupies the first
// KeyboardWidthPixels of the screen at magnification 1 with no pan.
func (v *Viewport) Transform() Transform {
	return Transform{
		Scale:   v.magnification,
		OffsetX: v.cfg.KeyboardWidthPixels*v.magnification + v.pan.X,
		OffsetY: v.pan.Y,
	}
}

// ImpactX is the screen x of the impact line.
func (v *Viewport) ImpactX() float64 {
	return v.Transform().Apply(Point{}).X
}

// ProjectX returns the right edge of a note relative to the impact line.
// It is zero when now == start for any positive rate.
func ProjectX(start, now, pixelsPerSecond float64) float64 {
	return (start - now) * pixelsPerSecond
}

func (v *Viewport) ProjectY(pitch uint8) float64 {
	var keyH = v.cfg.KeyHeightPixels
	return (float64(v.cfg.PianoRangeEnd)-float64(pitch))*keyH + keyH/2
}

func (v *Viewport) SceneHeight() float64 {
	return float64(int(v.cfg.PianoRangeEnd)-int(v.cfg.PianoRangeStart)+1) * v.cfg.KeyHeightPixels
}

// NoteRect is the scene rectangle of a note at time now. The width is the
// fixed approach width, independent of zoom.
func (v *Viewport) NoteRect(n midiparser.NoteEvent, now float64) Rect {
	var right = ProjectX(n.StartSeconds, now, v.PixelsPerSecond())
	var keyH = v.cfg.KeyHeightPixels
	return Rect{
		X: right - v.cfg.ApproachWidthPixels,
		Y: v.ProjectY(n.Pitch) - keyH/2,
		W: v.cfg.ApproachWidthPixels,
		H: keyH,
	}
}

// VisibleRange returns the half-open index range of notes whose right edge has
// not passed the impact line and whose start is within the lookahead window.
// notes must be sorted by start.
func (v *Viewport) VisibleRange(notes []midiparser.NoteEvent, now float64) (int, int) {
	var ppse = v.PixelsPerSecond()
	var lo = sort.Search(len(notes), func(i int) bool {
		return ProjectX(notes[i].StartSeconds, now, ppse) >= 0
	})
	var limit = now + v.cfg.LookaheadSeconds
	var hi = lo + sort.Search(len(notes)-lo, func(i int) bool {
		return notes[lo+i].StartSeconds > limit
	})
	return lo, hi
}

func (v *Viewport) IsVisible(n midiparser.NoteEvent, now float64) bool {
	return ProjectX(n.StartSeconds, now, v.PixelsPerSecond()) >= 0 && n.StartSeconds <= now+v.cfg.LookaheadSeconds
}
