package detect

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"pdf-translator/internal/coord"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// minTextChars is the number of non-whitespace characters that marks a
// document as carrying real text rather than scanned images.
const minTextChars = 50

// FallbackExtractor derives detections from the PDF's own text
// operators via ledongthuc/pdf. Positions come out in PDF space and are
// flipped into the image-space convention the rest of the pipeline
// expects.
type FallbackExtractor struct {
	f *os.File
	r *pdf.Reader
}

// OpenFallback opens a PDF for fallback extraction
func OpenFallback(path string) (*FallbackExtractor, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrDocumentOpen,
			fmt.Sprintf("opening %s for text extraction", path), err)
	}
	return &FallbackExtractor{f: f, r: r}, nil
}

// Close releases the underlying file
func (e *FallbackExtractor) Close() error {
	return e.f.Close()
}

// NumPages returns the page count seen by the text extractor
func (e *FallbackExtractor) NumPages() int {
	return e.r.NumPage()
}

// PageDetections extracts one page's characters and groups each text row
// into a paragraph block. pageW and pageH are the page's media box size
// in points; output boxes are image-space.
func (e *FallbackExtractor) PageDetections(pageNr int, pageW, pageH float64) (layout.PageDetections, error) {
	det := layout.PageDetections{Width: pageW, Height: pageH}

	page := e.r.Page(pageNr)
	if page.V.IsNull() {
		return det, types.NewPageError(types.ErrDetection, "page object is null", pageNr, nil)
	}
	rows, err := page.GetTextByRow()
	if err != nil {
		return det, types.NewPageError(types.ErrDetection, "extracting text rows", pageNr, err)
	}

	pageH = coord.SafePageHeight(pageH)
	for _, row := range rows {
		if len(row.Content) == 0 {
			continue
		}
		var blockBox coord.Box
		var rowText strings.Builder
		first := true
		for _, t := range row.Content {
			if t.S == "" {
				continue
			}
			size := t.FontSize
			if size <= 0 {
				size = 10
			}
			width := t.W
			if width <= 0 {
				width = size * 0.5 * float64(len([]rune(t.S)))
			}
			// t.X/t.Y are the glyph origin in PDF space; build the
			// character box there and flip it to image space.
			pdfBox := coord.Box{X1: t.X, Y1: t.Y, X2: t.X + width, Y2: t.Y + size}
			imgBox := coord.ToImage(pdfBox, pageH)

			det.CharBoxes = append(det.CharBoxes, layout.CharDetection{
				Box:      imgBox,
				FontName: t.Font,
				Text:     t.S,
				DetScore: 1,
				RecScore: 1,
			})
			rowText.WriteString(t.S)
			if first {
				blockBox = imgBox
				first = false
			} else {
				blockBox = blockBox.Union(imgBox)
			}
		}
		if first || strings.TrimSpace(rowText.String()) == "" {
			continue
		}
		det.BlockBoxes = append(det.BlockBoxes, layout.BlockDetection{
			Box:  blockBox,
			Role: layout.RoleParagraph,
		})
	}

	logger.Debug("fallback detections",
		logger.Int("page", pageNr),
		logger.Int("chars", len(det.CharBoxes)),
		logger.Int("blocks", len(det.BlockBoxes)))
	return det, nil
}

// HasExtractableText reports whether the document carries enough real
// text to translate. Scanned documents fail this check and are rejected
// up front instead of producing an empty output.
func HasExtractableText(path string) (bool, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return false, types.NewAppError(types.ErrDocumentOpen,
			fmt.Sprintf("opening %s", path), err)
	}
	defer f.Close()

	pagesToCheck := 3
	if r.NumPage() < pagesToCheck {
		pagesToCheck = r.NumPage()
	}

	total := 0
	for pageNr := 1; pageNr <= pagesToCheck; pageNr++ {
		page := r.Page(pageNr)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, c := range text {
			if !unicode.IsSpace(c) {
				total++
			}
		}
		if total >= minTextChars {
			return true, nil
		}
	}
	return total > 0, nil
}
