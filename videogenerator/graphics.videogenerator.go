package videogenerator

import (
	"fmt"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"pianoroll/timeline"
	"pianoroll/viewport"
)

var regularFont, _ = truetype.Parse(goregular.TTF)

func getDarkerShade(c Color) Color {
	var d = 0.8
	return Color{c.R * d, c.G * d, c.B * d}
}

func setRGBColor(dc *gg.Context, c Color) {
	dc.SetRGB(c.R, c.G, c.B)
}

func getColor(i int) Color {
	return colors[i%len(colors)]
}

func newCanvas(w, h int, keyH float64) *canvas {
	var size = keyH * 0.9
	if size < 6 {
		size = 6
	}
	return &canvas{
		dc:   gg.NewContext(w, h),
		face: truetype.NewFace(regularFont, &truetype.Options{Size: size}),
	}
}

func drawKeyboardKey(dc *gg.Context, k viewport.Key, pressed, glowing bool) {
	dc.DrawRectangle(k.Rect.X, k.Rect.Y, k.Rect.W, k.Rect.H)

	switch {
	case glowing:
		setRGBColor(dc, colorGlow)
	case pressed && k.Black:
		setRGBColor(dc, getDarkerShade(colorOrange))
	case pressed:
		setRGBColor(dc, colorOrange)
	case k.Black:
		dc.SetRGB(0.13, 0.13, 0.13)
	default:
		dc.SetRGB(1, 1, 1)
	}
	dc.FillPreserve()
	dc.SetRGBA(0, 0, 0, 1)
	dc.SetLineWidth(0.5)
	dc.Stroke()
}

func drawKeyboard(dc *gg.Context, f timeline.Frame) {
	for _, k := range f.Keys {
		drawKeyboardKey(dc, k, f.IsPressed(k.Pitch), f.IsGlowing(k.Pitch))
	}
}

func drawNotes(dc *gg.Context, f timeline.Frame) {
	for _, n := range f.VisibleNotes {
		var c = getColor(n.Track)
		if viewport.IsBlackKey(n.Pitch) {
			c = getDarkerShade(c)
		}
		dc.DrawRoundedRectangle(n.Rect.X, n.Rect.Y, n.Rect.W, n.Rect.H, noteBorderRadius)
		setRGBColor(dc, c)
		dc.FillPreserve()
		dc.SetRGBA(0, 0, 0, 1)
		dc.SetLineWidth(1)
		dc.Stroke()
	}
}

// drawScreenAxes draws a guide at every C and a fainter one at every F.
func drawScreenAxes(dc *gg.Context, f timeline.Frame, w float64) {
	for _, k := range f.Keys {
		switch k.Pitch % 12 {
		case 0:
			dc.SetRGBA(1, 1, 1, 0.3)
		case 5:
			dc.SetRGBA(1, 1, 1, 0.1)
		default:
			continue
		}
		dc.SetLineWidth(0.5)
		dc.DrawLine(f.ImpactX, k.Rect.Bottom(), w, k.Rect.Bottom())
		dc.Stroke()
	}
}

func drawImpactLine(dc *gg.Context, f timeline.Frame, h float64) {
	dc.SetRGBA(1, 1, 1, 0.6)
	dc.SetLineWidth(2)
	dc.DrawLine(f.ImpactX, 0, f.ImpactX, h)
	dc.Stroke()
}

func drawCNotesNotation(c *canvas, f timeline.Frame) {
	c.dc.SetFontFace(c.face)
	for _, k := range f.Keys {
		if k.Pitch%12 != 0 {
			continue
		}
		var octave = int(k.Pitch)/12 - 1
		if octave == 4 {
			c.dc.SetRGBA(0, 0, 0, 0.8)
		} else {
			c.dc.SetRGBA(0, 0, 0, 0.5)
		}
		c.dc.DrawStringAnchored(fmt.Sprintf("C%d", octave), k.Rect.Right()-2, k.Rect.CenterY(), 1, 0.5)
	}
}

func prepareScreen(dc *gg.Context, w, h float64) {
	dc.SetRGB(0.17, 0.17, 0.17)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()
}

func drawFrame(c *canvas, f timeline.Frame) {
	var w = float64(c.dc.Width())
	var h = float64(c.dc.Height())
	prepareScreen(c.dc, w, h)
	drawScreenAxes(c.dc, f, w)
	drawNotes(c.dc, f)
	drawKeyboard(c.dc, f)
	drawCNotesNotation(c, f)
	drawImpactLine(c.dc, f, h)

	if DEBUG || f.Placeholder {
		c.dc.SetFontFace(c.face)
		c.dc.SetRGBA(1, 1, 1, 0.8)
		var label = fmt.Sprintf("%.2fs", f.Now)
		if f.Placeholder {
			label = "placeholder " + label
		}
		c.dc.DrawStringAnchored(label, w-10, 10, 1, 1)
	}
}

func createFrame(c *canvas, framesFolder string, p plannedFrame) error {
	drawFrame(c, p.frame)
	return c.dc.SavePNG(filepath.Join(framesFolder, frameFileName(p.index)))
}
