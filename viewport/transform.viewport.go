package viewport

// Transform maps scene coordinates to screen coordinates:
// screen = scene*Scale + Offset. Notes and keys go through the same transform.
type Transform struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

func Identity() Transform {
	return Transform{Scale: 1}
}

func (t Transform) Apply(p Point) Point {
	return Point{
		X: p.X*t.Scale + t.OffsetX,
		Y: p.Y*t.Scale + t.OffsetY,
	}
}

func (t Transform) ApplyRect(r Rect) Rect {
	var min = t.Apply(Point{r.X, r.Y})
	return Rect{X: min.X, Y: min.Y, W: r.W * t.Scale, H: r.H * t.Scale}
}

func (t Transform) Invert(p Point) Point {
	if t.Scale == 0 {
		return Point{}
	}
	return Point{
		X: (p.X - t.OffsetX) / t.Scale,
		Y: (p.Y - t.OffsetY) / t.Scale,
	}
}
