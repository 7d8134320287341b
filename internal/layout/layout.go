// Package layout turns raw per-character and per-block detections into
// addressable translation units: it assigns characters to blocks, protects
// formula runs, solves the page's reading order, and emits one unit per
// translatable block with a stable wire address.
package layout

import (
	"fmt"

	"pdf-translator/internal/coord"
)

// Role classifies a detected block. The set is closed; roles differ only
// in address formation and in whether the block is translated at all.
type Role string

const (
	RoleParagraph Role = "paragraph"
	RoleTableCell Role = "table-cell"
	RoleFigure    Role = "figure"
	RoleHeader    Role = "header"
	RoleFooter    Role = "footer"
)

// Translatable reports whether blocks of this role produce translation
// units. Figures are redrawn untouched.
func (r Role) Translatable() bool {
	return r != RoleFigure
}

// Direction is the primary reading direction of a page or block
type Direction string

const (
	// DirHorizontal is plain top-to-bottom, left-to-right text
	DirHorizontal Direction = "horizontal"
	// DirVerticalRTL is vertical text read in columns from right to left
	DirVerticalRTL Direction = "vertical-rtl"
	// DirMultiColumn is horizontal text flowing through left-to-right columns
	DirMultiColumn Direction = "multi-column-ltr"
)

// CharDetection is one recognized character in image space, produced by
// the external detection model. Read-only input.
type CharDetection struct {
	Box      coord.Box `json:"bbox"`
	FontName string    `json:"font_name"`
	Text     string    `json:"text"`
	DetScore float64   `json:"det_score"`
	RecScore float64   `json:"rec_score"`
}

// BlockDetection is one detected layout region in image space. Table
// coordinates are only meaningful for table-cell blocks.
type BlockDetection struct {
	Box       coord.Box `json:"bbox"`
	Role      Role      `json:"role"`
	Direction Direction `json:"direction,omitempty"`
	Table     int       `json:"table,omitempty"`
	Row       int       `json:"row,omitempty"`
	Col       int       `json:"col,omitempty"`
}

// Block is a layout block being assembled: its detection geometry, the
// characters assigned to it, the extracted text with formula placeholders
// spliced in, and the reading-order index once the solver has run.
type Block struct {
	ID        string
	Box       coord.Box
	Role      Role
	Direction Direction
	Table     int
	Row       int
	Col       int

	Chars []CharDetection
	Text  string

	// Order is set exactly once by the reading-order solver and is
	// immutable afterwards. -1 means unordered.
	Order int
}

// IsTall reports whether the block's aspect ratio marks it as a vertical
// text candidate.
func (b *Block) IsTall() bool {
	w := b.Box.Width()
	if w <= 0 {
		return true
	}
	return b.Box.Height()/w > tallAspectRatio
}

// TranslationUnit is one addressable piece of translatable text. Units
// are immutable once created; re-extraction produces replacements.
type TranslationUnit struct {
	Address      string        `json:"address"`
	Text         string        `json:"text"`
	Page         int           `json:"page"`
	Role         Role          `json:"role"`
	BoxImage     coord.Box     `json:"bbox_image"`
	BoxPDF       coord.Box     `json:"bbox_pdf"`
	FontSizeHint float64       `json:"font_size_hint"`
	Background   [3]float64    `json:"background"`
}

// ParagraphAddress formats the wire address for an ordered non-table block
func ParagraphAddress(page, order int) string {
	return fmt.Sprintf("P%d_%d", page, order)
}

// TableCellAddress formats the wire address for a table cell
func TableCellAddress(page, table, row, col int) string {
	return fmt.Sprintf("T%d_%d_%d_%d", page, table, row, col)
}
