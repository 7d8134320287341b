package detect

import (
	"fmt"

	"pdf-translator/internal/coord"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/types"
)

// Source hands the pipeline one page's detections at a time. pageW and
// pageH are the page's media box size in points.
type Source interface {
	PageDetections(pageNr int, pageW, pageH float64) (layout.PageDetections, error)
}

// mapSource serves pre-loaded detections from a detection file
type mapSource struct {
	pages map[int]layout.PageDetections
}

// MapSource wraps detections loaded by Load as a Source. Pages absent
// from the file yield a detection error, which skips that page.
func MapSource(pages map[int]layout.PageDetections) Source {
	return &mapSource{pages: pages}
}

func (s *mapSource) PageDetections(pageNr int, pageW, pageH float64) (layout.PageDetections, error) {
	det, ok := s.pages[pageNr]
	if !ok {
		return layout.PageDetections{}, types.NewPageError(types.ErrDetection,
			fmt.Sprintf("no detections for page %d", pageNr), pageNr, nil)
	}
	if det.Width <= 0 {
		det.Width = pageW
	}
	if det.Height <= 0 {
		det.Height = pageH
	}
	// Detections from a rasterized page arrive in pixels. Bring them into
	// point scale before layout sees them, so box conversion against the
	// page's point height stays exact.
	if pageW > 0 && det.Width != pageW {
		det = scaleDetections(det, coord.SafeScale(pageW/det.Width))
	}
	return det, nil
}

// scaleDetections maps a page's detection boxes by the raster-to-point
// factor. Slices are copied: the cached detections stay in their
// original scale for repeated requests.
func scaleDetections(det layout.PageDetections, sc float64) layout.PageDetections {
	chars := make([]layout.CharDetection, len(det.CharBoxes))
	for i, c := range det.CharBoxes {
		c.Box = coord.Scale(c.Box, sc)
		chars[i] = c
	}
	blocks := make([]layout.BlockDetection, len(det.BlockBoxes))
	for i, b := range det.BlockBoxes {
		b.Box = coord.Scale(b.Box, sc)
		blocks[i] = b
	}
	det.CharBoxes = chars
	det.BlockBoxes = blocks
	det.Width *= sc
	det.Height *= sc
	return det
}
