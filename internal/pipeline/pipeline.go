// Package pipeline drives a whole document through extraction,
// translation and reconstruction. Pages stream through in batches so a
// large document never holds all of its raw detections in memory at
// once.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdf-translator/internal/content"
	"pdf-translator/internal/detect"
	"pdf-translator/internal/font"
	"pdf-translator/internal/formula"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdfio"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

// Options configures one pipeline run
type Options struct {
	// BatchSize is how many pages' raw detection buffers may be
	// resident at once. It is unrelated to the translator's own
	// request batching.
	BatchSize int
	// Concurrency bounds parallel page extraction within a batch
	Concurrency int
	SourceLang  types.Lang
	TargetLang  types.Lang
	// OnPage, when set, receives each page's terminal result as soon
	// as the page settles.
	OnPage func(PageResult)
}

// PageResult is one page's terminal outcome
type PageResult struct {
	Page      int
	State     types.PageState
	Units     int
	Truncated int
	Warnings  []types.PageWarning
}

// Pipeline owns the per-document engines for one run: the formula
// guard and font registry live exactly as long as the document.
type Pipeline struct {
	translator translator.Translator
	fontCfg    font.Config
	opts       Options
}

// New creates a pipeline
func New(tr translator.Translator, fontCfg font.Config, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.SourceLang == "" {
		opts.SourceLang = types.LangEnglish
	}
	if opts.TargetLang == "" {
		opts.TargetLang = types.LangJapanese
	}
	return &Pipeline{translator: tr, fontCfg: fontCfg, opts: opts}
}

// pageWork carries one page between the pipeline stages
type pageWork struct {
	page     int
	state    types.PageState
	units    []layout.TranslationUnit
	warnings []types.PageWarning
	skipped  string
	ops      []content.Operation
	trunc    int
}

// Process translates the document at inputPath into outputPath using
// detections from source. It returns the run report; only a document
// that cannot be opened or written, or a missing default font, aborts
// the run.
func (p *Pipeline) Process(ctx context.Context, inputPath, outputPath string, source detect.Source) (*types.DocumentResult, error) {
	result := &types.DocumentResult{
		RunID:      uuid.NewString(),
		InputPath:  inputPath,
		OutputPath: outputPath,
		StartedAt:  time.Now(),
	}

	doc, err := pdfio.Open(inputPath)
	if err != nil {
		return result, err
	}
	result.PageCount = doc.PageCount()

	guard := formula.NewGuard()
	registry := font.NewRegistry(p.fontCfg)
	extractor := layout.NewExtractor(guard)
	recon := pdfio.NewReconstructor(doc)

	logger.Info("starting translation run",
		logger.String("runID", result.RunID),
		logger.Int("pages", result.PageCount),
		logger.Int("batchSize", p.opts.BatchSize))

	cancelled := false
	for start := 1; start <= result.PageCount; start += p.opts.BatchSize {
		// Cancellation is cooperative and only observed here; a batch
		// in flight always settles its pages first.
		if ctx.Err() != nil {
			cancelled = true
			for page := start; page <= result.PageCount; page++ {
				p.settle(result, &pageWork{page: page, state: types.PageSkipped, skipped: "cancelled"})
			}
			break
		}

		end := start + p.opts.BatchSize - 1
		if end > result.PageCount {
			end = result.PageCount
		}
		batch := p.extractBatch(doc, extractor, source, start, end)

		if err := p.translateBatch(ctx, batch, guard, registry, doc, result); err != nil {
			return result, err
		}

		for _, w := range batch {
			if w.state != types.PageSkipped {
				if err := recon.Apply(w.page, w.ops); err != nil {
					w.state = types.PageSkipped
					w.skipped = "content stream error"
					w.warnings = append(w.warnings, types.PageWarning{
						Page: w.page, Code: types.ErrContentStream, Message: err.Error(),
					})
				} else {
					w.state = types.PageReconstructed
				}
			}
			p.settle(result, w)
		}
	}

	if !cancelled {
		if err := doc.Write(outputPath); err != nil {
			return result, err
		}
	} else {
		logger.Info("run cancelled, output not written",
			logger.String("runID", result.RunID))
	}

	result.FinishedAt = time.Now()
	logger.Info("translation run finished",
		logger.String("runID", result.RunID),
		logger.Int("reconstructed", result.PagesReconstructed),
		logger.Int("skipped", len(result.PagesSkipped)))
	return result, nil
}

// extractBatch runs page extraction for [start, end] with bounded
// parallelism. The formula guard and font registry serialize internally,
// so pages can extract concurrently. Raw detections are dropped before
// this returns: only the finished units cross the translation wait.
func (p *Pipeline) extractBatch(doc *pdfio.Document, extractor *layout.Extractor, source detect.Source, start, end int) []*pageWork {
	batch := make([]*pageWork, end-start+1)

	sem := make(chan struct{}, p.opts.Concurrency)
	var wg sync.WaitGroup
	for page := start; page <= end; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			w := &pageWork{page: page, state: types.PageExtracted}
			batch[page-start] = w

			pw, ph, err := doc.PageSize(page)
			if err != nil {
				w.state = types.PageSkipped
				w.skipped = "unreadable page geometry"
				w.warnings = append(w.warnings, types.PageWarning{
					Page: page, Code: types.ErrContentStream, Message: err.Error(),
				})
				return
			}
			det, err := source.PageDetections(page, pw, ph)
			if err != nil {
				w.state = types.PageSkipped
				w.skipped = "no detections"
				w.warnings = append(w.warnings, types.PageWarning{
					Page: page, Code: types.ErrDetection, Message: err.Error(),
				})
				return
			}
			pl, err := extractor.ExtractPage(page, ph, det)
			if err != nil {
				w.state = types.PageSkipped
				w.skipped = "extraction failed"
				w.warnings = append(w.warnings, types.PageWarning{
					Page: page, Code: types.ErrDetection, Message: err.Error(),
				})
				return
			}
			w.units = pl.Units
			w.warnings = append(w.warnings, pl.Warnings...)
			// Release the page's raw character buffers before the
			// translation round-trip.
			for _, b := range pl.Blocks {
				b.Chars = nil
			}
		}(page)
	}
	wg.Wait()
	return batch
}

// translateBatch performs the translation round-trip for a batch and
// turns translated units into content operations.
func (p *Pipeline) translateBatch(ctx context.Context, batch []*pageWork, guard *formula.Guard, registry *font.Registry, doc *pdfio.Document, result *types.DocumentResult) error {
	texts := make(map[string]string)
	byAddr := make(map[string]layout.TranslationUnit)
	for _, w := range batch {
		if w.state == types.PageSkipped {
			continue
		}
		w.state = types.PageAwaitingTranslation
		for _, u := range w.units {
			texts[u.Address] = u.Text
			byAddr[u.Address] = u
		}
	}
	if len(texts) == 0 {
		return nil
	}

	translated, err := p.translator.Translate(ctx, texts, p.opts.SourceLang, p.opts.TargetLang)
	if err != nil && len(translated) == 0 {
		// Nothing came back; every page in the batch is skipped, the
		// run itself continues.
		for _, w := range batch {
			if w.state == types.PageAwaitingTranslation {
				w.state = types.PageSkipped
				w.skipped = "translation failed"
				w.warnings = append(w.warnings, types.PageWarning{
					Page: w.page, Code: types.ErrTranslation, Message: err.Error(),
				})
			}
		}
		return nil
	}

	// Restore formulas and pick fonts first, so every font the batch
	// needs is registered before the single embedding pass.
	type renderUnit struct {
		unit   layout.TranslationUnit
		text   string
		fontID string
	}
	perPage := make(map[int][]renderUnit)
	for _, w := range batch {
		if w.state != types.PageAwaitingTranslation {
			continue
		}
		for _, u := range w.units {
			text, ok := translated[u.Address]
			if !ok || strings.TrimSpace(text) == "" {
				w.warnings = append(w.warnings, types.PageWarning{
					Page: w.page, Code: types.ErrTranslation,
					Message: fmt.Sprintf("no translation for %s, keeping original", u.Address),
				})
				continue
			}
			restored, nRestored, rerr := guard.Restore(text)
			result.FormulasRestored += nRestored
			result.FormulasLeftInPlace += formula.CountPlaceholders(restored)
			if rerr != nil {
				w.warnings = append(w.warnings, types.PageWarning{
					Page: w.page, Code: types.ErrFormulaRestore,
					Message: fmt.Sprintf("unit %s: %v", u.Address, rerr),
				})
			}
			fontID, ferr := registry.SelectFontForText(restored, p.opts.TargetLang)
			if ferr != nil {
				// Fatal only when even the default fallback is gone
				return ferr
			}
			perPage[w.page] = append(perPage[w.page], renderUnit{unit: u, text: restored, fontID: fontID})
			result.UnitsTranslated++
		}
	}

	if err := registry.EmbedFonts(doc); err != nil {
		return err
	}

	for _, w := range batch {
		if w.state != types.PageAwaitingTranslation {
			continue
		}
		for _, ru := range perPage[w.page] {
			gen, gerr := content.Generate(ru.unit, ru.text, ru.fontID, p.opts.TargetLang, registry)
			if gerr != nil {
				w.warnings = append(w.warnings, types.PageWarning{
					Page: w.page, Code: types.ErrFontResolution,
					Message: fmt.Sprintf("unit %s: %v", ru.unit.Address, gerr),
				})
				continue
			}
			if gen.Truncated {
				w.trunc++
				result.UnitsTruncated++
				w.warnings = append(w.warnings, types.PageWarning{
					Page: w.page, Code: types.ErrContentStream,
					Message: fmt.Sprintf("unit %s overflowed, showing first %d lines", ru.unit.Address, gen.LinesShown),
				})
			}
			w.ops = append(w.ops, gen.Ops...)
		}
	}
	return nil
}

// settle records a page's terminal state on the run report
func (p *Pipeline) settle(result *types.DocumentResult, w *pageWork) {
	result.Warnings = append(result.Warnings, w.warnings...)
	switch w.state {
	case types.PageReconstructed:
		result.PagesReconstructed++
	case types.PageSkipped:
		result.PagesSkipped = append(result.PagesSkipped, types.SkippedPage{
			Page: w.page, Reason: w.skipped,
		})
	}
	if p.opts.OnPage != nil {
		p.opts.OnPage(PageResult{
			Page:      w.page,
			State:     w.state,
			Units:     len(w.units),
			Truncated: w.trunc,
			Warnings:  w.warnings,
		})
	}
}
