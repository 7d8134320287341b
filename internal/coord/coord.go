// Package coord converts geometry between the two coordinate systems the
// translator works in: image space (origin top-left, Y grows downward, as
// produced by layout/character detection on rasterized pages) and PDF user
// space (origin bottom-left, Y grows upward, in points).
//
// The conversion is pure arithmetic and its two directions are exact
// inverses: only Y is flipped against the page height, X is unchanged.
package coord

// Box is an axis-aligned rectangle. X1,Y1 is the corner nearest the
// coordinate origin, X2,Y2 the far corner, so X1 <= X2 and Y1 <= Y2 in
// either coordinate system.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Contains reports whether the point (x, y) lies inside the box,
// boundaries included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X1 && x <= b.X2 && y >= b.Y1 && y <= b.Y2
}

// CenterX returns the horizontal center of the box
func (b Box) CenterX() float64 { return (b.X1 + b.X2) / 2 }

// CenterY returns the vertical center of the box
func (b Box) CenterY() float64 { return (b.Y1 + b.Y2) / 2 }

// Union returns the smallest box covering both b and o
func (b Box) Union(o Box) Box {
	u := b
	if o.X1 < u.X1 {
		u.X1 = o.X1
	}
	if o.Y1 < u.Y1 {
		u.Y1 = o.Y1
	}
	if o.X2 > u.X2 {
		u.X2 = o.X2
	}
	if o.Y2 > u.Y2 {
		u.Y2 = o.Y2
	}
	return u
}

// OverlapsX reports whether the horizontal ranges of b and o intersect
func (b Box) OverlapsX(o Box) bool { return b.X1 < o.X2 && o.X1 < b.X2 }

// OverlapsY reports whether the vertical ranges of b and o intersect
func (b Box) OverlapsY(o Box) bool { return b.Y1 < o.Y2 && o.Y1 < b.Y2 }

// ToPDF converts an image-space box to PDF space for a page of the given
// height. The Y axis is flipped so the image-space top edge (y1) becomes
// the PDF-space top edge (y2).
func ToPDF(img Box, pageHeight float64) Box {
	return Box{
		X1: img.X1,
		Y1: pageHeight - img.Y2,
		X2: img.X2,
		Y2: pageHeight - img.Y1,
	}
}

// ToImage converts a PDF-space box back to image space. It is the exact
// inverse of ToPDF.
func ToImage(pdf Box, pageHeight float64) Box {
	return Box{
		X1: pdf.X1,
		Y1: pageHeight - pdf.Y2,
		X2: pdf.X2,
		Y2: pageHeight - pdf.Y1,
	}
}

// Scale returns the box with all coordinates multiplied by s. Used to map
// raster detection pixels to PDF points (s = 72 / DPI).
func Scale(b Box, s float64) Box {
	return Box{X1: b.X1 * s, Y1: b.Y1 * s, X2: b.X2 * s, Y2: b.Y2 * s}
}

// SafePageHeight clamps degenerate page heights to a usable value.
// Detections occasionally arrive with a zero-height page record; falling
// back to US Letter height keeps the conversion total.
func SafePageHeight(h float64) float64 {
	if h <= 0 {
		return 792
	}
	return h
}

// SafeScale clamps a non-positive raster scale to identity
func SafeScale(s float64) float64 {
	if s <= 0 {
		return 1
	}
	return s
}
