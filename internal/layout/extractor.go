package layout

import (
	"fmt"
	"sort"
	"strings"

	"pdf-translator/internal/coord"
	"pdf-translator/internal/formula"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// PageDetections is the external detection model's output for one page,
// in image space.
type PageDetections struct {
	Width      float64          `json:"width"`
	Height     float64          `json:"height"`
	Direction  Direction        `json:"direction,omitempty"`
	CharBoxes  []CharDetection  `json:"char_boxes"`
	BlockBoxes []BlockDetection `json:"block_boxes"`
}

// PageLayout is the extractor's output for one page
type PageLayout struct {
	Page      int
	Direction Direction
	Blocks    []*Block
	Units     []TranslationUnit
	Warnings  []types.PageWarning
}

// Extractor assembles translation units from raw detections. The guard
// is shared across the whole document so formula ids stay unique.
type Extractor struct {
	guard *formula.Guard
}

// NewExtractor creates an extractor backed by the document's formula guard
func NewExtractor(guard *formula.Guard) *Extractor {
	return &Extractor{guard: guard}
}

// ExtractPage builds ordered, addressed translation units for one page.
// Blocks with no assignable characters are dropped with a warning rather
// than failing the page; figure blocks participate in ordering but emit
// no unit.
func (e *Extractor) ExtractPage(page int, pageHeight float64, det PageDetections) (*PageLayout, error) {
	pl := &PageLayout{Page: page}

	blocks := make([]*Block, 0, len(det.BlockBoxes))
	for i, bd := range det.BlockBoxes {
		blocks = append(blocks, &Block{
			ID:        fmt.Sprintf("pg%d-blk%d", page, i),
			Box:       bd.Box,
			Role:      bd.Role,
			Direction: bd.Direction,
			Table:     bd.Table,
			Row:       bd.Row,
			Col:       bd.Col,
			Order:     -1,
		})
	}

	assignChars(blocks, det.CharBoxes)

	// Blocks that attracted no characters carry nothing to translate.
	// Figures are kept regardless; they are ordered but never translated.
	kept := blocks[:0]
	for _, b := range blocks {
		if len(b.Chars) == 0 && b.Role != RoleFigure {
			logger.Debug("dropping empty block",
				logger.String("block", b.ID),
				logger.String("role", string(b.Role)))
			pl.Warnings = append(pl.Warnings, types.PageWarning{
				Page:    page,
				Code:    types.ErrDetection,
				Message: fmt.Sprintf("block %s (%s) has no characters", b.ID, b.Role),
			})
			continue
		}
		kept = append(kept, b)
	}

	res := SolveOrder(kept, det.Direction, det.Width, coord.SafePageHeight(det.Height))
	pl.Direction = res.Direction
	pl.Blocks = res.Ordered
	if res.CycleBroken {
		pl.Warnings = append(pl.Warnings, types.PageWarning{
			Page:    page,
			Code:    types.ErrDetection,
			Message: "reading order contained a precedence cycle, broken by corner distance",
		})
	}

	for _, b := range pl.Blocks {
		vertical := res.Direction == DirVerticalRTL || b.Direction == DirVerticalRTL
		b.Text = e.blockText(b, vertical)
		if !b.Role.Translatable() || strings.TrimSpace(b.Text) == "" {
			continue
		}

		addr := ParagraphAddress(page, b.Order)
		if b.Role == RoleTableCell {
			addr = TableCellAddress(page, b.Table, b.Row, b.Col)
		}
		pl.Units = append(pl.Units, TranslationUnit{
			Address:      addr,
			Text:         b.Text,
			Page:         page,
			Role:         b.Role,
			BoxImage:     b.Box,
			BoxPDF:       coord.ToPDF(b.Box, coord.SafePageHeight(pageHeight)),
			FontSizeHint: fontSizeHint(b.Chars),
			Background:   [3]float64{1, 1, 1},
		})
	}
	return pl, nil
}

// assignChars attributes each character to the block containing its
// center. Characters outside every block are detection noise and are
// dropped.
func assignChars(blocks []*Block, chars []CharDetection) {
	for _, c := range chars {
		cx, cy := c.Box.CenterX(), c.Box.CenterY()
		var best *Block
		for _, b := range blocks {
			if !b.Box.Contains(cx, cy) {
				continue
			}
			// Nested blocks: prefer the smallest containing region, so
			// table cells win over the table outline.
			if best == nil || area(b.Box) < area(best.Box) {
				best = b
			}
		}
		if best != nil {
			best.Chars = append(best.Chars, c)
		}
	}
}

func area(b coord.Box) float64 { return b.Width() * b.Height() }

// blockText orders a block's characters into reading sequence and splices
// formula placeholders over flagged runs.
func (e *Extractor) blockText(b *Block, vertical bool) string {
	chars := append([]CharDetection(nil), b.Chars...)
	if vertical {
		// Columns right to left, top to bottom within a column
		sort.SliceStable(chars, func(i, j int) bool {
			if chars[i].Box.CenterX() != chars[j].Box.CenterX() {
				return chars[i].Box.CenterX() > chars[j].Box.CenterX()
			}
			return chars[i].Box.CenterY() < chars[j].Box.CenterY()
		})
	} else {
		sortHorizontal(chars)
	}

	var sb strings.Builder
	var run []CharDetection
	flush := func() {
		if len(run) == 0 {
			return
		}
		sb.WriteString(e.protectRun(b.ID, run))
		run = run[:0]
	}
	for _, c := range chars {
		if e.guard.IsFormulaChar(c.FontName, c.Text) {
			run = append(run, c)
			continue
		}
		flush()
		sb.WriteString(c.Text)
	}
	flush()
	return sb.String()
}

// sortHorizontal groups characters into lines by vertical overlap, then
// orders lines top to bottom and characters left to right within a line.
// Plain (y, x) sorting breaks on superscripts, whose boxes sit above the
// baseline of the glyph to their left.
func sortHorizontal(chars []CharDetection) {
	sort.SliceStable(chars, func(i, j int) bool {
		return chars[i].Box.CenterY() < chars[j].Box.CenterY()
	})
	var lines [][]CharDetection
	for _, c := range chars {
		placed := false
		for i := range lines {
			last := lines[i][len(lines[i])-1]
			if c.Box.OverlapsY(last.Box) {
				lines[i] = append(lines[i], c)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, []CharDetection{c})
		}
	}
	idx := 0
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].Box.CenterX() < line[j].Box.CenterX()
		})
		for _, c := range line {
			chars[idx] = c
			idx++
		}
	}
}

// protectRun records a flagged character run with its glyph offsets and
// returns the placeholder for it.
func (e *Extractor) protectRun(blockID string, run []CharDetection) string {
	origin := run[0].Box
	var text strings.Builder
	glyphs := make([]formula.Glyph, 0, len(run))
	for _, c := range run {
		text.WriteString(c.Text)
		r := ' '
		for _, rr := range c.Text {
			r = rr
			break
		}
		glyphs = append(glyphs, formula.Glyph{
			Rune: r,
			DX:   c.Box.X1 - origin.X1,
			DY:   origin.Y1 - c.Box.Y1,
			Size: c.Box.Height(),
			Font: c.FontName,
		})
	}
	return e.guard.Protect(text.String(), blockID, glyphs)
}

// fontSizeHint estimates the block's dominant font size from the median
// character height.
func fontSizeHint(chars []CharDetection) float64 {
	if len(chars) == 0 {
		return 10
	}
	hs := make([]float64, 0, len(chars))
	for _, c := range chars {
		if h := c.Box.Height(); h > 0 {
			hs = append(hs, h)
		}
	}
	if len(hs) == 0 {
		return 10
	}
	sort.Float64s(hs)
	return hs[len(hs)/2]
}
