package viewer

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"pianoroll/timeline"
	"pianoroll/viewport"
)

var (
	bgColor       = color.RGBA{43, 43, 43, 255}
	whiteKeyColor = color.RGBA{255, 255, 255, 255}
	blackKeyColor = color.RGBA{33, 33, 33, 255}
	pressedColor  = color.RGBA{255, 128, 0, 255}
	glowColor     = color.RGBA{255, 242, 153, 255}
	impactColor   = color.RGBA{255, 255, 255, 150}
	borderColor   = color.RGBA{0, 0, 0, 255}
)

var trackColors = []color.RGBA{
	{255, 128, 0, 255},
	{51, 255, 51, 255},
	{128, 217, 255, 255},
	{255, 153, 179, 255},
	{204, 153, 13, 255},
	{128, 128, 128, 255},
}

func darker(c color.RGBA) color.RGBA {
	return color.RGBA{uint8(float64(c.R) * 0.8), uint8(float64(c.G) * 0.8), uint8(float64(c.B) * 0.8), c.A}
}

func noteColor(n timeline.VisibleNote) color.RGBA {
	var c = trackColors[n.Track%len(trackColors)]
	if viewport.IsBlackKey(n.Pitch) {
		c = darker(c)
	}
	return c
}

func keyColor(k viewport.Key, pressed, glowing bool) color.RGBA {
	switch {
	case glowing:
		return glowColor
	case pressed && k.Black:
		return darker(pressedColor)
	case pressed:
		return pressedColor
	case k.Black:
		return blackKeyColor
	default:
		return whiteKeyColor
	}
}

func fillRect(dst *ebiten.Image, r viewport.Rect, c color.Color) {
	ebitenutil.DrawRect(dst, r.X, r.Y, r.W, r.H, c)
}

func drawNotes(dst *ebiten.Image, f timeline.Frame) {
	for _, n := range f.VisibleNotes {
		fillRect(dst, n.Rect, borderColor)
		if n.Rect.W > 2 && n.Rect.H > 2 {
			inner := viewport.Rect{X: n.Rect.X + 1, Y: n.Rect.Y + 1, W: n.Rect.W - 2, H: n.Rect.H - 2}
			fillRect(dst, inner, noteColor(n))
		}
	}
}

func drawKeyboard(dst *ebiten.Image, f timeline.Frame) {
	for _, k := range f.Keys {
		fillRect(dst, k.Rect, borderColor)
		inner := viewport.Rect{X: k.Rect.X, Y: k.Rect.Y + 0.5, W: k.Rect.W - 0.5, H: k.Rect.H - 0.5}
		fillRect(dst, inner, keyColor(k, f.IsPressed(k.Pitch), f.IsGlowing(k.Pitch)))
	}
}

func drawImpactLine(dst *ebiten.Image, f timeline.Frame) {
	ebitenutil.DrawRect(dst, f.ImpactX-1, 0, 2, float64(dst.Bounds().Dy()), impactColor)
}

func statusText(f timeline.Frame, status string) string {
	var state = "paused"
	if f.Playing {
		state = "playing"
	}
	var text = fmt.Sprintf("%s %.2f / %.2fs  x%.2f  notes %d",
		state, f.Now, f.TotalDurationSeconds, f.Speed, len(f.VisibleNotes))
	if f.Placeholder {
		text += "  [placeholder]"
	}
	if status != "" {
		text += "\n" + status
	}
	return text
}

func drawFrame(screen *ebiten.Image, f timeline.Frame, status string) {
	screen.Fill(bgColor)
	drawNotes(screen, f)
	drawKeyboard(screen, f)
	drawImpactLine(screen, f)
	ebitenutil.DebugPrintAt(screen, statusText(f, status), screen.Bounds().Dx()-320, 4)
}
