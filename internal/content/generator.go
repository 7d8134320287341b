package content

import (
	"fmt"
	"strings"

	"pdf-translator/internal/coord"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Operation is one page-description operation. Operations are ordered
// and append-only per page; a unit's redaction always precedes its text.
type Operation interface {
	isOperation()
}

// Redaction paints an opaque rectangle over the unit's original region
// before replacement text is drawn.
type Redaction struct {
	Box  coord.Box
	Fill [3]float64
}

// TextShow draws one line of encoded text at an absolute position
type TextShow struct {
	FontHandle string
	FontSize   float64
	X, Y       float64
	Hex        string
}

func (Redaction) isOperation() {}
func (TextShow) isOperation()  {}

// TextEncoder is the registry surface the generator needs: encoding for
// the operators and the embed handle the operators reference.
type TextEncoder interface {
	WidthMeasurer
	Encode(fontID, text string) (string, error)
	Handle(fontID string) (string, error)
}

// GenerateResult is the generated operations for one unit plus overflow
// accounting.
type GenerateResult struct {
	Ops        []Operation
	LinesShown int
	Truncated  bool
}

// Generate emits the operations that replace one unit's original text
// with its translation: a redaction covering the unit's PDF-space box
// followed by one TextShow per fitted line, stepping the baseline down
// by line_height * font_size from the box's top edge. Lines whose
// baseline would fall below the box bottom are dropped with a truncation
// flag rather than an error.
func Generate(unit layout.TranslationUnit, translated string, fontID string, lang types.Lang, enc TextEncoder) (GenerateResult, error) {
	handle, err := enc.Handle(fontID)
	if err != nil {
		return GenerateResult{}, err
	}

	fit := Fit(translated, unit.BoxPDF, unit.FontSizeHint, lang, fontID, enc)

	res := GenerateResult{
		Ops: []Operation{Redaction{Box: unit.BoxPDF, Fill: unit.Background}},
	}
	box := unit.BoxPDF
	for i, line := range fit.Lines {
		y := box.Y2 - fit.FontSize - float64(i)*fit.FontSize*fit.LineHeight
		if y < box.Y1 {
			res.Truncated = true
			logger.Debug("truncating overflow lines",
				logger.String("address", unit.Address),
				logger.Int("shown", res.LinesShown),
				logger.Int("total", len(fit.Lines)))
			break
		}
		if line == "" {
			res.LinesShown++
			continue
		}
		hex, err := enc.Encode(fontID, line)
		if err != nil {
			return GenerateResult{}, types.NewAppError(types.ErrFontResolution,
				fmt.Sprintf("encoding line for %s", unit.Address), err)
		}
		res.Ops = append(res.Ops, TextShow{
			FontHandle: handle,
			FontSize:   fit.FontSize,
			X:          box.X1,
			Y:          y,
			Hex:        hex,
		})
		res.LinesShown++
	}
	return res, nil
}

// Serialize renders a page's operations into one content stream body.
// Each unit's text operators sit in their own BT/ET block; blocks are
// never nested. The stream is wrapped in q/Q so inherited graphics
// state cannot leak into or out of the appended stream.
func Serialize(ops []Operation) []byte {
	var sb strings.Builder
	sb.WriteString("q\n")

	inText := false
	endText := func() {
		if inText {
			sb.WriteString("ET\n")
			inText = false
		}
	}
	for _, op := range ops {
		switch o := op.(type) {
		case Redaction:
			endText()
			fmt.Fprintf(&sb, "%s %s %s rg %s %s %s %s re f\n",
				num(o.Fill[0]), num(o.Fill[1]), num(o.Fill[2]),
				num(o.Box.X1), num(o.Box.Y1), num(o.Box.Width()), num(o.Box.Height()))
		case TextShow:
			if !inText {
				sb.WriteString("BT\n")
				inText = true
			}
			fmt.Fprintf(&sb, "/%s %s Tf 1 0 0 1 %s %s Tm [<%s>] TJ\n",
				o.FontHandle, num(o.FontSize), num(o.X), num(o.Y), o.Hex)
		}
	}
	endText()
	sb.WriteString("Q\n")
	return []byte(sb.String())
}

// num formats a PDF numeric operand without trailing zero noise
func num(f float64) string {
	s := fmt.Sprintf("%.3f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
