package font

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Policy names a glyph-encoding strategy. It is fixed per font at
// registration.
type Policy string

const (
	// PolicyEmbedded encodes through the embedded font's own glyph-id
	// map, 4 hex digits per glyph.
	PolicyEmbedded Policy = "embedded"
	// PolicyExistingCID reuses a composite font from the source
	// document, encoding raw code points as 4 hex digits.
	PolicyExistingCID Policy = "existing-cid"
	// PolicyExistingSimple reuses a single-byte font from the source
	// document, encoding raw code points as 2 hex digits.
	PolicyExistingSimple Policy = "existing-simple"
)

// encoder is the per-policy encoding implementation. One variant per
// policy; the policy is never re-decided after registration.
type encoder interface {
	policy() Policy
	encode(text string) (string, error)
}

// embeddedEncoder encodes through sfnt glyph indices. The sfnt buffer is
// not safe for concurrent use, so lookups are serialized per font.
type embeddedEncoder struct {
	mu   sync.Mutex
	font *sfnt.Font
	buf  sfnt.Buffer
}

func (e *embeddedEncoder) policy() Policy { return PolicyEmbedded }

func (e *embeddedEncoder) encode(text string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sb strings.Builder
	for _, c := range text {
		gi, err := e.font.GlyphIndex(&e.buf, c)
		if err != nil {
			return "", fmt.Errorf("glyph lookup for %q: %w", c, err)
		}
		// Missing glyphs map to index 0 (.notdef), which renders the
		// font's tofu box rather than dropping the character silently.
		fmt.Fprintf(&sb, "%04X", uint16(gi))
	}
	return sb.String(), nil
}

// advance returns the glyph advance for c in em units (advance/em), or
// false when the glyph is missing.
func (e *embeddedEncoder) advance(c rune) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	gi, err := e.font.GlyphIndex(&e.buf, c)
	if err != nil || gi == 0 {
		return 0, false
	}
	adv, err := e.font.GlyphAdvance(&e.buf, gi, fixed.I(1000), xfont.HintingNone)
	if err != nil {
		return 0, false
	}
	return float64(adv) / 64 / 1000, true
}

// cidEncoder encodes raw code points for an existing composite font
type cidEncoder struct{}

func (cidEncoder) policy() Policy { return PolicyExistingCID }

func (cidEncoder) encode(text string) (string, error) {
	var sb strings.Builder
	for _, c := range text {
		if c > 0xFFFF {
			// Outside the BMP; substitute so the 4-digit width holds
			c = '�'
		}
		fmt.Fprintf(&sb, "%04X", c)
	}
	return sb.String(), nil
}

// simpleEncoder encodes raw code points for an existing single-byte
// font. Characters outside the single-byte range render as '?'.
type simpleEncoder struct{}

func (simpleEncoder) policy() Policy { return PolicyExistingSimple }

func (simpleEncoder) encode(text string) (string, error) {
	var sb strings.Builder
	for _, c := range text {
		if c > 0xFF {
			c = '?'
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	return sb.String(), nil
}

// isFullWidth reports whether a character occupies a full em cell
func isFullWidth(c rune) bool {
	return runewidth.RuneWidth(c) >= 2
}
