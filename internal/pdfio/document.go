// Package pdfio wraps pdfcpu for the translator: opening and validating
// source documents, embedding replacement fonts, and appending generated
// content streams to pages without disturbing existing objects.
package pdfio

import (
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"pdf-translator/internal/logger"
	apperrors "pdf-translator/internal/types"
)

// Document is an open PDF being rewritten in place. All mutation goes
// through AppendContentStream and EmbedTTF; everything else is
// read-only.
type Document struct {
	mu   sync.Mutex
	ctx  *model.Context
	path string

	// fontRefs maps embed handles to their Type0 font objects so page
	// resource dictionaries can reference them.
	fontRefs   map[string]types.IndirectRef
	nextHandle int
}

// Open reads and cross-checks a PDF file
func Open(path string) (*Document, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrDocumentOpen,
			fmt.Sprintf("opening %s", path), err)
	}
	logger.Info("opened document",
		logger.String("path", path),
		logger.Int("pages", ctx.PageCount))
	return &Document{
		ctx:      ctx,
		path:     path,
		fontRefs: make(map[string]types.IndirectRef),
	}, nil
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// PageSize returns a page's media box width and height in points.
// Pages are numbered from 1.
func (d *Document) PageSize(pageNr int) (w, h float64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dims, err := d.ctx.PageDims()
	if err != nil {
		return 0, 0, apperrors.NewPageError(apperrors.ErrContentStream,
			"reading page dimensions", pageNr, err)
	}
	if pageNr < 1 || pageNr > len(dims) {
		return 0, 0, apperrors.NewPageError(apperrors.ErrContentStream,
			fmt.Sprintf("page %d out of range (1..%d)", pageNr, len(dims)), pageNr, nil)
	}
	return dims[pageNr-1].Width, dims[pageNr-1].Height, nil
}

// AppendContentStream adds body as exactly one new content stream object
// at the end of the page's Contents. A lone stream reference becomes a
// two-element array; an existing array grows by one. Existing stream
// objects are never rewritten, which is what keeps images and vector art
// on the page byte-identical.
func (d *Document) AppendContentStream(pageNr int, body []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	pageDict, _, _, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		return apperrors.NewPageError(apperrors.ErrContentStream,
			"resolving page dictionary", pageNr, err)
	}

	sd := types.StreamDict{
		Dict:    types.Dict{"Length": types.Integer(0)},
		Content: body,
	}
	if err := sd.Encode(); err != nil {
		return apperrors.NewPageError(apperrors.ErrContentStream,
			"encoding content stream", pageNr, err)
	}
	sd.Dict.Update("Length", types.Integer(len(sd.Raw)))

	ref, err := d.ctx.XRefTable.IndRefForNewObject(sd)
	if err != nil {
		return apperrors.NewPageError(apperrors.ErrContentStream,
			"allocating content stream object", pageNr, err)
	}

	obj, found := pageDict.Find("Contents")
	if !found {
		pageDict.Insert("Contents", *ref)
		return nil
	}
	switch contents := obj.(type) {
	case types.IndirectRef:
		pageDict.Update("Contents", types.Array{contents, *ref})
	case types.Array:
		pageDict.Update("Contents", append(contents, *ref))
	default:
		return apperrors.NewPageError(apperrors.ErrContentStream,
			fmt.Sprintf("malformed Contents entry of type %T", obj), pageNr, nil)
	}
	return nil
}

// EnsureFontResource makes an embedded font reachable from a page's
// resource dictionary under its handle. Idempotent per page and handle.
func (d *Document) EnsureFontResource(pageNr int, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ref, ok := d.fontRefs[handle]
	if !ok {
		// A font reused from the source document is already reachable
		// through the page's own resources.
		return nil
	}

	pageDict, _, _, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		return apperrors.NewPageError(apperrors.ErrContentStream,
			"resolving page dictionary", pageNr, err)
	}

	res, err := d.ensureDict(pageDict, "Resources")
	if err != nil {
		return apperrors.NewPageError(apperrors.ErrContentStream,
			"resolving page resources", pageNr, err)
	}
	fonts, err := d.ensureDict(res, "Font")
	if err != nil {
		return apperrors.NewPageError(apperrors.ErrContentStream,
			"resolving page font resources", pageNr, err)
	}
	if _, found := fonts.Find(handle); !found {
		fonts.Insert(handle, ref)
	}
	return nil
}

// ensureDict dereferences dict[key] as a dictionary, creating it when
// absent.
func (d *Document) ensureDict(dict types.Dict, key string) (types.Dict, error) {
	obj, found := dict.Find(key)
	if !found {
		sub := types.Dict{}
		dict.Insert(key, sub)
		return sub, nil
	}
	sub, err := d.ctx.DereferenceDict(obj)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = types.Dict{}
		dict.Update(key, sub)
	}
	return sub, nil
}

// Write validates and writes the document to path
func (d *Document) Write(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := api.WriteContextFile(d.ctx, path); err != nil {
		return apperrors.NewAppError(apperrors.ErrDocumentOpen,
			fmt.Sprintf("writing %s", path), err)
	}
	logger.Info("wrote document", logger.String("path", path))
	return nil
}

// EmbedTTF embeds a TrueType font program as an Identity-H composite
// font and returns the resource handle generated text uses to reference
// it. Satisfies the font registry's Embedder interface.
func (d *Document) EmbedTTF(family string, data []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := sfnt.Parse(data)
	if err != nil {
		return "", fmt.Errorf("parsing font %s: %w", family, err)
	}

	fileRef, err := d.newFontFile(data)
	if err != nil {
		return "", err
	}
	descRef, err := d.newFontDescriptor(family, f, fileRef)
	if err != nil {
		return "", err
	}
	cidRef, err := d.newCIDFont(family, descRef)
	if err != nil {
		return "", err
	}
	type0 := types.Dict{
		"Type":            types.Name("Font"),
		"Subtype":         types.Name("Type0"),
		"BaseFont":        types.Name(pdfBaseFontName(family)),
		"Encoding":        types.Name("Identity-H"),
		"DescendantFonts": types.Array{*cidRef},
	}
	ref, err := d.ctx.XRefTable.IndRefForNewObject(type0)
	if err != nil {
		return "", err
	}

	d.nextHandle++
	handle := fmt.Sprintf("TF%d", d.nextHandle)
	d.fontRefs[handle] = *ref
	logger.Debug("embedded composite font",
		logger.String("family", family),
		logger.String("handle", handle),
		logger.Int("bytes", len(data)))
	return handle, nil
}

func (d *Document) newFontFile(data []byte) (*types.IndirectRef, error) {
	sd := types.StreamDict{
		Dict: types.Dict{
			"Length":  types.Integer(0),
			"Length1": types.Integer(len(data)),
		},
		Content: data,
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	sd.Dict.Update("Length", types.Integer(len(sd.Raw)))
	return d.ctx.XRefTable.IndRefForNewObject(sd)
}

func (d *Document) newFontDescriptor(family string, f *sfnt.Font, fileRef *types.IndirectRef) (*types.IndirectRef, error) {
	var buf sfnt.Buffer
	ascent, descent := 880.0, -120.0
	bbox := types.NewNumberArray(-200, -250, 1200, 1000)
	if m, err := f.Metrics(&buf, fixed.I(1000), xfont.HintingNone); err == nil {
		ascent = fixedToUnits(m.Ascent)
		descent = -fixedToUnits(m.Descent)
	}
	if b, err := f.Bounds(&buf, fixed.I(1000), xfont.HintingNone); err == nil {
		bbox = types.NewNumberArray(
			fixedToUnits(b.Min.X), -fixedToUnits(b.Max.Y),
			fixedToUnits(b.Max.X), -fixedToUnits(b.Min.Y))
	}

	desc := types.Dict{
		"Type":        types.Name("FontDescriptor"),
		"FontName":    types.Name(pdfBaseFontName(family)),
		"Flags":       types.Integer(4),
		"FontBBox":    bbox,
		"ItalicAngle": types.Integer(0),
		"Ascent":      types.Float(ascent),
		"Descent":     types.Float(descent),
		"CapHeight":   types.Float(ascent),
		"StemV":       types.Integer(80),
		"FontFile2":   *fileRef,
	}
	return d.ctx.XRefTable.IndRefForNewObject(desc)
}

func (d *Document) newCIDFont(family string, descRef *types.IndirectRef) (*types.IndirectRef, error) {
	cid := types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("CIDFontType2"),
		"BaseFont": types.Name(pdfBaseFontName(family)),
		"CIDSystemInfo": types.Dict{
			"Registry":   types.StringLiteral("Adobe"),
			"Ordering":   types.StringLiteral("Identity"),
			"Supplement": types.Integer(0),
		},
		"FontDescriptor": *descRef,
		"DW":             types.Integer(1000),
		"CIDToGIDMap":    types.Name("Identity"),
	}
	return d.ctx.XRefTable.IndRefForNewObject(cid)
}

// fixedToUnits converts a 26.6 fixed value measured at 1000ppem to
// font units.
func fixedToUnits(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// pdfBaseFontName strips characters a PDF name cannot carry
func pdfBaseFontName(family string) string {
	out := make([]rune, 0, len(family))
	for _, c := range family {
		if c == ' ' || c == '/' || c == '#' || c < 0x21 || c > 0x7e {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return "EmbeddedFont"
	}
	return string(out)
}
