package layout

import "image"

// Box is an axis-aligned rectangle in page-pixel coordinates.
// Invariant: X1 < X2 and Y1 < Y2 for any box with positive area.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box
func (b Box) Width() float64 {
	return b.X2 - b.X1
}

// Height returns the vertical extent of the box
func (b Box) Height() float64 {
	return b.Y2 - b.Y1
}

// Area returns the area of the box; zero for degenerate boxes
func (b Box) Area() float64 {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return 0
	}
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Intersection returns the overlapping rectangle of two boxes.
// The result has zero area when the boxes do not overlap.
func (b Box) Intersection(o Box) Box {
	return Box{
		X1: maxf(b.X1, o.X1),
		Y1: maxf(b.Y1, o.Y1),
		X2: minf(b.X2, o.X2),
		Y2: minf(b.Y2, o.Y2),
	}
}

// Union returns the smallest box containing both boxes
func (b Box) Union(o Box) Box {
	return Box{
		X1: minf(b.X1, o.X1),
		Y1: minf(b.Y1, o.Y1),
		X2: maxf(b.X2, o.X2),
		Y2: maxf(b.Y2, o.Y2),
	}
}

// IoU returns the intersection-over-union ratio of two boxes, in [0,1]
func (b Box) IoU(o Box) float64 {
	inter := b.Intersection(o).Area()
	if inter == 0 {
		return 0
	}
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Rect converts the box to an image.Rectangle, rounding outward so the
// crop never loses boundary pixels
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2+0.5), int(b.Y2+0.5))
}

// Corners returns the box as a 4-point polygon in clockwise order
// starting at the top-left. (0,0) is the top-left of the page.
func (b Box) Corners() [][2]float64 {
	return [][2]float64{
		{b.X1, b.Y1},
		{b.X2, b.Y1},
		{b.X2, b.Y2},
		{b.X1, b.Y2},
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
