// Package content lays translated text back into the original block
// geometry: the line fitter wraps and compresses text against a fixed
// box, the generator turns a fitted unit into raw page-description
// operators, and the serializer renders those operators into a content
// stream body.
package content

import (
	"strings"

	"pdf-translator/internal/coord"
	"pdf-translator/internal/types"
)

// WidthMeasurer measures one character's advance width at a font size.
// Satisfied by the font registry.
type WidthMeasurer interface {
	CharWidth(fontID string, c rune, size float64) float64
}

// baseLineHeights are the starting line-height ratios per target
// language. CJK scripts need more leading than Latin text.
var baseLineHeights = map[types.Lang]float64{
	types.LangJapanese: 1.3,
	types.LangEnglish:  1.2,
	types.LangChinese:  1.4,
	types.LangKorean:   1.1,
}

const (
	defaultLineHeight = 1.1
	lineHeightStep    = 0.05
	lineHeightFloor   = 1.0
	minFontSize       = 4.0
)

// FitResult is the fitter's decision for one unit
type FitResult struct {
	FontSize   float64
	LineHeight float64
	Lines      []string
}

// BaseLineHeight returns the starting line-height ratio for a language
func BaseLineHeight(lang types.Lang) float64 {
	if lh, ok := baseLineHeights[lang]; ok {
		return lh
	}
	return defaultLineHeight
}

// Fit wraps text into the box at the hinted font size and picks a line
// height. Starting from the language's base ratio, the line height is
// reduced in fixed steps while the projected text height exceeds the
// box, stopping at the floor. Overflow past the floor is not an error;
// the generator truncates the lines that fall outside the box and the
// caller records a warning.
func Fit(text string, box coord.Box, fontSizeHint float64, lang types.Lang, fontID string, m WidthMeasurer) FitResult {
	size := fontSizeHint
	if size < minFontSize {
		size = minFontSize
	}
	lines := wrap(text, box.Width(), size, fontID, m)

	lh := BaseLineHeight(lang)
	for lh > lineHeightFloor {
		if float64(len(lines))*size*lh <= box.Height() {
			break
		}
		lh -= lineHeightStep
	}
	if lh < lineHeightFloor {
		lh = lineHeightFloor
	}
	// Step arithmetic accumulates binary noise (1.3 - 6*0.05 is not
	// exactly 1.0); snap to the step grid.
	lh = float64(int(lh*100+0.5)) / 100

	return FitResult{FontSize: size, LineHeight: lh, Lines: lines}
}

// wrap greedily breaks text into lines no wider than width. Breaks
// prefer the last space on the line so Latin words stay whole; CJK text
// breaks at any character. Explicit newlines are respected.
func wrap(text string, width, size float64, fontID string, m WidthMeasurer) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, wrapLine(para, width, size, fontID, m)...)
	}
	return lines
}

func wrapLine(text string, width, size float64, fontID string, m WidthMeasurer) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}

	var lines []string
	start := 0
	lineWidth := 0.0
	lastSpace := -1
	for i := 0; i < len(runes); i++ {
		w := m.CharWidth(fontID, runes[i], size)
		if lineWidth+w > width && i > start {
			brk := i
			if lastSpace > start {
				brk = lastSpace + 1
			}
			lines = append(lines, strings.TrimRight(string(runes[start:brk]), " "))
			start = brk
			lastSpace = -1
			lineWidth = 0
			for j := start; j <= i; j++ {
				lineWidth += m.CharWidth(fontID, runes[j], size)
			}
			continue
		}
		if runes[i] == ' ' {
			lastSpace = i
		}
		lineWidth += w
	}
	if start < len(runes) {
		lines = append(lines, strings.TrimRight(string(runes[start:]), " "))
	}
	return lines
}
