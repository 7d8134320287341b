// Package detect supplies per-page detections to the extractor. The
// primary source is a JSON file produced by the external layout and
// character detection model; when no detection file is available the
// package falls back to extracting characters straight from the PDF's
// own text operators, which is good enough for simple single-column
// documents.
package detect

import (
	"encoding/json"
	"fmt"
	"os"

	"pdf-translator/internal/layout"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// File is the on-disk detection format: one entry per page, boxes in
// image space with the origin at the page's top-left corner.
type File struct {
	Pages []PageEntry `json:"pages"`
}

// PageEntry is one page's detections
type PageEntry struct {
	Page       int                     `json:"page"`
	Width      float64                 `json:"width"`
	Height     float64                 `json:"height"`
	Direction  layout.Direction        `json:"direction,omitempty"`
	CharBoxes  []layout.CharDetection  `json:"char_boxes"`
	BlockBoxes []layout.BlockDetection `json:"block_boxes"`
}

// Load reads a detection file and indexes it by page number
func Load(path string) (map[int]layout.PageDetections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrDetection,
			fmt.Sprintf("reading detection file %s", path), err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, types.NewAppError(types.ErrDetection,
			fmt.Sprintf("parsing detection file %s", path), err)
	}

	pages := make(map[int]layout.PageDetections, len(f.Pages))
	for _, p := range f.Pages {
		if p.Page < 1 {
			return nil, types.NewAppError(types.ErrDetection,
				fmt.Sprintf("detection file %s has invalid page number %d", path, p.Page), nil)
		}
		if _, dup := pages[p.Page]; dup {
			return nil, types.NewAppError(types.ErrDetection,
				fmt.Sprintf("detection file %s lists page %d twice", path, p.Page), nil)
		}
		pages[p.Page] = layout.PageDetections{
			Width:      p.Width,
			Height:     p.Height,
			Direction:  p.Direction,
			CharBoxes:  p.CharBoxes,
			BlockBoxes: p.BlockBoxes,
		}
	}
	logger.Info("loaded detections",
		logger.String("path", path),
		logger.Int("pages", len(pages)))
	return pages, nil
}
