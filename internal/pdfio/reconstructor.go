package pdfio

import (
	"pdf-translator/internal/content"
	"pdf-translator/internal/logger"
)

// Reconstructor applies a page's generated operations to the document.
// It is the sole mutation point per page: all of a page's operations go
// into exactly one appended content stream, in one call, so a page is
// either fully reconstructed or untouched.
type Reconstructor struct {
	doc *Document
}

// NewReconstructor creates a reconstructor for an open document
func NewReconstructor(doc *Document) *Reconstructor {
	return &Reconstructor{doc: doc}
}

// Apply serializes the page's operations and appends them as one new
// content stream, after making every referenced font reachable from the
// page's resources. With no operations the page is left untouched.
func (r *Reconstructor) Apply(pageNr int, ops []content.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	for _, op := range ops {
		ts, ok := op.(content.TextShow)
		if !ok || seen[ts.FontHandle] {
			continue
		}
		seen[ts.FontHandle] = true
		if err := r.doc.EnsureFontResource(pageNr, ts.FontHandle); err != nil {
			return err
		}
	}

	body := content.Serialize(ops)
	if err := r.doc.AppendContentStream(pageNr, body); err != nil {
		return err
	}
	logger.Debug("reconstructed page",
		logger.Int("page", pageNr),
		logger.Int("operations", len(ops)),
		logger.Int("streamBytes", len(body)))
	return nil
}
