// Package formula isolates non-linguistic spans (mathematical notation)
// from text sent to the translator. Flagged character runs are recorded
// per document and replaced with opaque {vN} placeholders; after
// translation the placeholders are substituted back with the original
// glyphs at their recorded offsets.
package formula

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// defaultMathFontPattern matches font names commonly used for mathematical
// notation: Computer Modern math faces, AMS symbol fonts, TeX auxiliary
// fonts, and generic mono/symbol/math families. MS[AB]M matches MSAM/MSBM
// but not MS-Mincho or MS-Gothic.
const defaultMathFontPattern = `(CM[^R]|MS[AB]M|XY|MT|BL|RM|EU|LA|RS|LINE|LCIRCLE|` +
	`TeX-|rsfs|txsy|wasy|stmary|` +
	`.*Mono|.*Code|.*Ital|.*Sym|.*Math)`

var (
	// reCIDEscape matches a character the extractor could not map to
	// Unicode and passed through as a raw CID reference.
	reCIDEscape = regexp.MustCompile(`^\(cid:\d+\)$`)

	// rePlaceholder matches {vN} placeholders. Internal whitespace is
	// tolerated and the v is case-insensitive, because translators tend
	// to reflow tokens.
	rePlaceholder = regexp.MustCompile(`(?i)\{\s*v\s*((?:\d\s*)+)\}`)

	// formulaCategories are the Unicode general categories treated as
	// formula content: modifier letters, non-spacing marks, modifier
	// symbols, math symbols, and separators.
	formulaCategories = []*unicode.RangeTable{
		unicode.Lm, unicode.Mn, unicode.Sk, unicode.Sm,
		unicode.Zl, unicode.Zp, unicode.Zs,
	}
)

// Glyph is one character of a protected run with its rendering state.
// DX and DY are offsets relative to the run's origin, so a restored run
// can be placed at its original sub-position within a line.
type Glyph struct {
	Rune rune    `json:"rune"`
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
	Size float64 `json:"size"`
	Font string  `json:"font"`
}

// Record is a protected formula run. IDs are assigned monotonically per
// document and are never reused or deleted, so placeholder ids stay
// stable across translation retries.
type Record struct {
	ID      int     `json:"id"`
	Text    string  `json:"text"`
	Glyphs  []Glyph `json:"glyphs,omitempty"`
	BlockID string  `json:"block_id"`
}

// Guard owns one document's protected-run list and id counter. The
// counter is guard-local, never package-global, so concurrently
// processed documents cannot contaminate each other's ids.
type Guard struct {
	mu      sync.Mutex
	records []Record
	vfont   *regexp.Regexp
}

// NewGuard creates a guard with the default math-font pattern
func NewGuard() *Guard {
	return &Guard{vfont: regexp.MustCompile(defaultMathFontPattern)}
}

// NewGuardWithPattern creates a guard with a custom math-font pattern
func NewGuardWithPattern(pattern string) (*Guard, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Guard{vfont: re}, nil
}

// IsFormulaChar reports whether a detected character belongs to a formula
// run: its font matches a math-font name pattern, its Unicode general
// category is formula-like, or the extractor emitted it as a raw CID
// escape.
func (g *Guard) IsFormulaChar(fontName, ch string) bool {
	// Subset-tagged names arrive as "ABCDEF+Fontname"
	if i := strings.LastIndex(fontName, "+"); i >= 0 {
		fontName = fontName[i+1:]
	}

	if fontName == "" && ch == "" {
		return false
	}

	if fontName != "" {
		if loc := g.vfont.FindStringIndex(fontName); loc != nil && loc[0] == 0 {
			return true
		}
	}

	if reCIDEscape.MatchString(ch) {
		return true
	}

	for _, r := range ch {
		if unicode.IsOneOf(formulaCategories, r) {
			return true
		}
		// Greek letters are formula content even though their category
		// is plain letter
		if r >= 0x0370 && r < 0x0400 {
			return true
		}
	}
	return false
}

// Protect records a contiguous flagged run and returns the placeholder
// to splice into the block's extracted text in its place.
func (g *Guard) Protect(text, blockID string, glyphs []Glyph) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := len(g.records)
	g.records = append(g.records, Record{
		ID:      id,
		Text:    text,
		Glyphs:  glyphs,
		BlockID: blockID,
	})
	return Placeholder(id)
}

// Placeholder formats the placeholder token for a record id
func Placeholder(id int) string {
	return "{v" + strconv.Itoa(id) + "}"
}

// Restore substitutes every {vN} placeholder in text with the recorded
// run. A token carrying several whitespace-separated indices, as in
// "{v1 2}", restores each index in sequence. Ids beyond the recorded
// range are left as single-id placeholders and reported through the
// returned error; valid ids are still restored. The returned count is
// the number of runs restored.
func (g *Guard) Restore(text string) (string, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	restored := 0
	var unknown []int

	out := rePlaceholder.ReplaceAllStringFunc(text, func(m string) string {
		var sb strings.Builder
		for _, field := range strings.Fields(rePlaceholder.FindStringSubmatch(m)[1]) {
			id, err := strconv.Atoi(field)
			if err != nil || id < 0 || id >= len(g.records) {
				unknown = append(unknown, id)
				sb.WriteString(Placeholder(id))
				continue
			}
			restored++
			sb.WriteString(g.records[id].Text)
		}
		return sb.String()
	})

	if len(unknown) > 0 {
		logger.Warn("formula placeholder out of range, leaving in place",
			logger.Any("ids", unknown),
			logger.Int("recorded", len(g.records)))
		return out, restored, types.NewAppError(types.ErrFormulaRestore,
			"unknown formula placeholder id", nil)
	}
	return out, restored, nil
}

// Record returns the record for an id, if recorded
func (g *Guard) Record(id int) (Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id < 0 || id >= len(g.records) {
		return Record{}, false
	}
	return g.records[id], true
}

// Count returns the number of recorded runs
func (g *Guard) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}

// ContainsPlaceholder reports whether text still carries a {vN} token
func ContainsPlaceholder(text string) bool {
	return rePlaceholder.MatchString(text)
}

// CountPlaceholders counts the placeholder indices still present in
// text. Used by the pipeline to tally formulas left unrestored after a
// restore pass.
func CountPlaceholders(text string) int {
	n := 0
	for _, m := range rePlaceholder.FindAllStringSubmatch(text, -1) {
		n += len(strings.Fields(m[1]))
	}
	return n
}
