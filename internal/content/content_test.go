package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/coord"
	"pdf-translator/internal/font"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/types"
)

// testRegistry reuses source-document fonts so no font files are needed
func testRegistry(t *testing.T) (*font.Registry, string) {
	t.Helper()
	r := font.NewRegistry(font.Config{})
	id := r.RegisterExisting(types.LangJapanese, "NotoSansJP", "F1", true)
	r.RegisterExisting(types.LangEnglish, "Helvetica", "F2", false)
	return r, id
}

func TestFitCompressesLineHeightToFloor(t *testing.T) {
	r, id := testRegistry(t)

	// 40pt box, 12pt font, Japanese text needing 4 full-width lines of
	// 8 characters each. 4 lines never fit even at the floor, so the
	// fitter stops at 1.0 and leaves the overflow to the generator.
	box := coord.Box{X1: 0, Y1: 0, X2: 96, Y2: 40}
	text := strings.Repeat("あ", 32)

	fit := Fit(text, box, 12, types.LangJapanese, id, r)

	assert.Equal(t, 12.0, fit.FontSize)
	assert.Equal(t, 1.0, fit.LineHeight)
	require.Len(t, fit.Lines, 4)
	for _, line := range fit.Lines {
		assert.Equal(t, 8, len([]rune(line)))
	}
}

func TestFitKeepsBaseLineHeightWhenTextFits(t *testing.T) {
	r, id := testRegistry(t)

	box := coord.Box{X1: 0, Y1: 0, X2: 96, Y2: 100}
	fit := Fit("こんにちは", box, 12, types.LangJapanese, id, r)

	assert.Equal(t, 1.3, fit.LineHeight)
	assert.Equal(t, []string{"こんにちは"}, fit.Lines)
}

func TestFitPartialCompression(t *testing.T) {
	r, id := testRegistry(t)

	// Two 12pt lines in a 26pt box: 1.3 and down need >26.4pt, 1.05
	// needs 25.2pt, so compression stops there.
	box := coord.Box{X1: 0, Y1: 0, X2: 96, Y2: 26}
	fit := Fit(strings.Repeat("あ", 16), box, 12, types.LangJapanese, id, r)

	assert.Equal(t, 1.05, fit.LineHeight)
	assert.Len(t, fit.Lines, 2)
}

func TestFitLineHeightTable(t *testing.T) {
	assert.Equal(t, 1.3, BaseLineHeight(types.LangJapanese))
	assert.Equal(t, 1.2, BaseLineHeight(types.LangEnglish))
	assert.Equal(t, 1.4, BaseLineHeight(types.LangChinese))
	assert.Equal(t, 1.1, BaseLineHeight(types.LangKorean))
	assert.Equal(t, 1.1, BaseLineHeight(types.Lang("fr")))
}

func TestWrapBreaksLatinAtSpaces(t *testing.T) {
	r, _ := testRegistry(t)
	enID, err := r.Register(types.LangEnglish)
	require.NoError(t, err)

	// 60pt box, 12pt font: ten half-width characters per line
	box := coord.Box{X1: 0, Y1: 0, X2: 60, Y2: 200}
	fit := Fit("hello brave new world", box, 12, types.LangEnglish, enID, r)

	assert.Equal(t, []string{"hello", "brave new", "world"}, fit.Lines)
}

func TestGenerateRedactionFirstAndPositioned(t *testing.T) {
	r, id := testRegistry(t)

	imgBox := coord.Box{X1: 50, Y1: 100, X2: 200, Y2: 160}
	const pageHeight = 792.0
	unit := layout.TranslationUnit{
		Address:      "P1_0",
		Page:         1,
		Role:         layout.RoleParagraph,
		BoxImage:     imgBox,
		BoxPDF:       coord.ToPDF(imgBox, pageHeight),
		FontSizeHint: 12,
		Background:   [3]float64{1, 1, 1},
	}

	res, err := Generate(unit, "こんにちは", id, types.LangJapanese, r)
	require.NoError(t, err)
	require.NotEmpty(t, res.Ops)

	red, ok := res.Ops[0].(Redaction)
	require.True(t, ok, "first operation must be the redaction")
	assert.Equal(t, coord.ToPDF(imgBox, pageHeight), red.Box)
	assert.Equal(t, [3]float64{1, 1, 1}, red.Fill)

	ts, ok := res.Ops[1].(TextShow)
	require.True(t, ok)
	assert.Equal(t, "F1", ts.FontHandle)
	assert.Equal(t, red.Box.X1, ts.X)
	// First baseline steps down one font size from the box top
	assert.InDelta(t, red.Box.Y2-12, ts.Y, 1e-9)
	assert.False(t, res.Truncated)
}

func TestGenerateTruncatesOverflow(t *testing.T) {
	r, id := testRegistry(t)

	// 40pt box fits 3 baselines at 12pt / line height 1.0; the fitter's
	// 4th line falls below the bottom edge and is dropped.
	imgBox := coord.Box{X1: 0, Y1: 0, X2: 96, Y2: 40}
	unit := layout.TranslationUnit{
		Address:      "P1_0",
		Page:         1,
		BoxImage:     imgBox,
		BoxPDF:       coord.ToPDF(imgBox, 40),
		FontSizeHint: 12,
		Background:   [3]float64{1, 1, 1},
	}

	res, err := Generate(unit, strings.Repeat("あ", 32), id, types.LangJapanese, r)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.LinesShown)

	shows := 0
	for _, op := range res.Ops {
		if _, ok := op.(TextShow); ok {
			shows++
		}
	}
	assert.Equal(t, 3, shows)
}

func TestGenerateUnembeddedFontFails(t *testing.T) {
	r := font.NewRegistry(font.Config{})
	id := r.RegisterExisting(types.LangEnglish, "Helvetica", "", false)

	unit := layout.TranslationUnit{BoxPDF: coord.Box{X2: 100, Y2: 100}, FontSizeHint: 12}
	_, err := Generate(unit, "x", id, types.LangEnglish, r)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrFontResolution))
}

func TestSerializeFormat(t *testing.T) {
	ops := []Operation{
		Redaction{Box: coord.Box{X1: 10, Y1: 20, X2: 110, Y2: 50}, Fill: [3]float64{1, 1, 1}},
		TextShow{FontHandle: "F1", FontSize: 12, X: 10, Y: 38, Hex: "3053"},
		TextShow{FontHandle: "F1", FontSize: 12, X: 10, Y: 26, Hex: "3093"},
	}

	got := string(Serialize(ops))

	assert.Equal(t, "q\n"+
		"1 1 1 rg 10 20 100 30 re f\n"+
		"BT\n"+
		"/F1 12 Tf 1 0 0 1 10 38 Tm [<3053>] TJ\n"+
		"/F1 12 Tf 1 0 0 1 10 26 Tm [<3093>] TJ\n"+
		"ET\nQ\n", got)
}

func TestSerializeNeverNestsTextBlocks(t *testing.T) {
	ops := []Operation{
		Redaction{Box: coord.Box{X2: 10, Y2: 10}, Fill: [3]float64{1, 1, 1}},
		TextShow{FontHandle: "F1", FontSize: 10, Hex: "0041"},
		Redaction{Box: coord.Box{X1: 20, Y1: 20, X2: 30, Y2: 30}, Fill: [3]float64{1, 1, 1}},
		TextShow{FontHandle: "F2", FontSize: 10, Hex: "0042"},
	}

	got := string(Serialize(ops))

	depth, maxDepth := 0, 0
	for _, tok := range strings.Fields(got) {
		switch tok {
		case "BT":
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case "ET":
			depth--
		}
	}
	assert.Equal(t, 0, depth, "unbalanced BT/ET")
	assert.Equal(t, 1, maxDepth, "nested BT blocks")
	assert.Equal(t, 2, strings.Count(got, "BT\n"))
}
