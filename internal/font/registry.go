// Package font resolves, embeds and encodes fonts for translated text.
// The registry is per-document: each language maps to one registered
// font whose encoding policy is decided at registration time and never
// changes afterwards.
package font

import (
	"fmt"
	"os"
	"sync"
	"unicode"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/language"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Paths holds the configured font files for one language
type Paths struct {
	Primary  string `json:"primary"`
	Fallback string `json:"fallback"`
}

// Config maps language codes to font files. Default is the multilingual
// fallback used when a language has no usable configured font; a run can
// only fail on fonts when Default itself is missing.
type Config struct {
	Fonts   map[types.Lang]Paths `json:"fonts"`
	Default string               `json:"default"`
}

// Descriptor is one registered font and its frozen encoding policy
type Descriptor struct {
	ID         string
	Lang       types.Lang
	Family     string
	SourcePath string

	// Handle is the PDF resource handle, set once the font has been
	// embedded into the output document.
	Handle   string
	Embedded bool

	enc  encoder
	data []byte
}

// Policy returns the descriptor's encoding policy
func (d *Descriptor) Policy() Policy { return d.enc.policy() }

// Embedder is the document-side half of font embedding. Implemented by
// the PDF writer; the registry stays ignorant of PDF object plumbing.
type Embedder interface {
	EmbedTTF(family string, data []byte) (handle string, err error)
}

// Registry is the per-document font registry. Registration and embedding
// are serialized; concurrent page extraction goroutines share one
// registry safely.
type Registry struct {
	mu     sync.Mutex
	cfg    Config
	byLang map[types.Lang]*Descriptor
	byID   map[string]*Descriptor
	nextID int
}

// NewRegistry creates an empty registry for one document
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:    cfg,
		byLang: make(map[types.Lang]*Descriptor),
		byID:   make(map[string]*Descriptor),
	}
}

// Register resolves and loads the font for a language. Idempotent: the
// second call for a language returns the first call's id. Newly loaded
// fonts get the Embedded policy; the configured fallback chain is
// primary, then fallback, then the default multilingual font, and only
// when all three are unusable does registration fail.
func (r *Registry) Register(lang types.Lang) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.byLang[lang]; ok {
		return d.ID, nil
	}

	paths := r.cfg.Fonts[lang]
	var lastErr error
	for _, path := range []string{paths.Primary, paths.Fallback, r.cfg.Default} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		f, err := sfnt.Parse(data)
		if err != nil {
			lastErr = fmt.Errorf("parse %s: %w", path, err)
			continue
		}
		name, _ := f.Name(nil, sfnt.NameIDFamily)
		if name == "" {
			name = string(lang)
		}
		d := &Descriptor{
			ID:         r.newID(),
			Lang:       lang,
			Family:     name,
			SourcePath: path,
			enc:        &embeddedEncoder{font: f},
			data:       data,
		}
		r.byLang[lang] = d
		r.byID[d.ID] = d
		logger.Debug("registered font",
			logger.String("lang", string(lang)),
			logger.String("family", name),
			logger.String("id", d.ID))
		return d.ID, nil
	}
	return "", types.NewAppError(types.ErrFontResolution,
		fmt.Sprintf("no usable font for language %q", lang), lastErr)
}

// RegisterExisting registers a font already embedded in the source
// document under a known resource handle, so generated text can reuse it
// instead of embedding a duplicate. Composite (CID) fonts encode as
// 4-hex-digit code points, simple fonts as 2.
func (r *Registry) RegisterExisting(lang types.Lang, family, handle string, composite bool) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.byLang[lang]; ok {
		return d.ID
	}
	var enc encoder = &simpleEncoder{}
	if composite {
		enc = &cidEncoder{}
	}
	d := &Descriptor{
		ID:       r.newID(),
		Lang:     lang,
		Family:   family,
		Handle:   handle,
		Embedded: true,
		enc:      enc,
	}
	r.byLang[lang] = d
	r.byID[d.ID] = d
	return d.ID
}

func (r *Registry) newID() string {
	r.nextID++
	return fmt.Sprintf("FT%d", r.nextID)
}

// Handle returns the PDF resource handle for a font id. The font must
// have been embedded (or registered as an existing document font) first.
func (r *Registry) Handle(fontID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[fontID]
	if !ok {
		return "", types.NewAppError(types.ErrFontResolution,
			fmt.Sprintf("unknown font id %q", fontID), nil)
	}
	if !d.Embedded || d.Handle == "" {
		return "", types.NewAppError(types.ErrFontResolution,
			fmt.Sprintf("font %s (%s) referenced before embedding", fontID, d.Family), nil)
	}
	return d.Handle, nil
}

// Lookup returns the descriptor for a font id
func (r *Registry) Lookup(id string) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	return d, ok
}

// SelectFontForText picks the font for a run of translated text by
// script: kana forces the Japanese font, hangul the Korean one, unified
// ideographs resolve through the target language (the same Han character
// renders differently across ja/zh/ko), anything else uses the target
// language's own font.
func (r *Registry) SelectFontForText(text string, target types.Lang) (string, error) {
	lang := target
	for _, c := range text {
		if unicode.Is(unicode.Hiragana, c) || unicode.Is(unicode.Katakana, c) {
			lang = types.LangJapanese
			break
		}
		if unicode.Is(unicode.Hangul, c) {
			lang = types.LangKorean
			break
		}
		if unicode.Is(unicode.Han, c) {
			lang = hanLang(target)
			break
		}
	}
	return r.Register(lang)
}

// hanLang resolves which font renders CJK unified ideographs for a
// target language.
func hanLang(target types.Lang) types.Lang {
	switch target {
	case types.LangJapanese, types.LangChinese, types.LangKorean:
		return target
	default:
		return types.LangChinese
	}
}

// Encode encodes text for a TextShow operator using the font's frozen
// policy. The hex-digit width per character is fixed by the policy.
func (r *Registry) Encode(fontID, text string) (string, error) {
	r.mu.Lock()
	d, ok := r.byID[fontID]
	r.mu.Unlock()
	if !ok {
		return "", types.NewAppError(types.ErrFontResolution,
			fmt.Sprintf("unknown font id %q", fontID), nil)
	}
	return d.enc.encode(text)
}

// EmbedFonts embeds every registered Embedded-policy font into the
// output document. Idempotent: fonts already embedded keep their handle,
// so repeated calls never duplicate font objects.
func (r *Registry) EmbedFonts(em Embedder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.byID {
		if d.Embedded || len(d.data) == 0 {
			continue
		}
		handle, err := em.EmbedTTF(d.Family, d.data)
		if err != nil {
			return types.NewAppError(types.ErrFontResolution,
				fmt.Sprintf("embedding font %s failed", d.Family), err)
		}
		d.Handle = handle
		d.Embedded = true
		logger.Info("embedded font",
			logger.String("family", d.Family),
			logger.String("handle", handle))
	}
	return nil
}

// CharWidth returns the advance width of one character at the given size
// in points. Embedded fonts measure through their glyph metrics; fonts
// reused from the source document fall back to the half/full-width
// heuristic.
func (r *Registry) CharWidth(fontID string, c rune, size float64) float64 {
	r.mu.Lock()
	d, ok := r.byID[fontID]
	r.mu.Unlock()
	if ok {
		if e, isEmb := d.enc.(*embeddedEncoder); isEmb {
			if w, wok := e.advance(c); wok {
				return w * size
			}
		}
	}
	if isFullWidth(c) {
		return size
	}
	return size / 2
}

// NormalizeLang maps arbitrary BCP 47 input to one of the supported
// language codes, defaulting to Japanese on no match.
func NormalizeLang(code string) types.Lang {
	tag, err := language.Parse(code)
	if err != nil {
		return types.LangJapanese
	}
	matcher := language.NewMatcher([]language.Tag{
		language.Japanese,
		language.English,
		language.SimplifiedChinese,
		language.Korean,
	})
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return types.LangJapanese
	}
	return [...]types.Lang{
		types.LangJapanese,
		types.LangEnglish,
		types.LangChinese,
		types.LangKorean,
	}[idx]
}
