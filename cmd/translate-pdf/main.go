package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pdf-translator/internal/config"
	"pdf-translator/internal/detect"
	"pdf-translator/internal/font"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/results"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the configuration file")
		detections = flag.String("detections", "", "path to a detection JSON file; omit to extract text from the PDF itself")
		output     = flag.String("output", "", "output PDF path; defaults to <input>_translated.pdf")
		sourceLang = flag.String("source", "", "source language (overrides config)")
		targetLang = flag.String("target", "", "target language (overrides config)")
		resultsDir = flag.String("results", "", "directory for run reports")
		batchSize  = flag.Int("batch", 0, "pages per processing batch (overrides config)")
		verbose    = flag.Bool("v", false, "log debug output")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: translate-pdf [flags] <input.pdf>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	input := flag.Arg(0)
	if _, err := os.Stat(input); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", input, err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	if *verbose {
		logCfg.Level = logger.LevelDebug
		logCfg.EnableConsole = true
	}
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	mgr, err := config.NewManager(*configPath)
	if err != nil {
		fail(err)
	}
	if err := mgr.Load(); err != nil {
		fail(err)
	}
	cfg := mgr.Get()

	src := font.NormalizeLang(cfg.SourceLang)
	tgt := font.NormalizeLang(cfg.TargetLang)
	if *sourceLang != "" {
		src = font.NormalizeLang(*sourceLang)
	}
	if *targetLang != "" {
		tgt = font.NormalizeLang(*targetLang)
	}

	out := *output
	if out == "" {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		out = filepath.Join(filepath.Dir(input), base+"_translated.pdf")
	}

	source, cleanup, err := detectionSource(input, *detections)
	if err != nil {
		fail(err)
	}
	defer cleanup()

	tr := translator.NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL,
		time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.Concurrency)

	pages := cfg.BatchSize
	if *batchSize > 0 {
		pages = *batchSize
	}
	p := pipeline.New(tr, mgr.FontConfig(), pipeline.Options{
		BatchSize:   pages,
		Concurrency: cfg.Concurrency,
		SourceLang:  src,
		TargetLang:  tgt,
		OnPage: func(r pipeline.PageResult) {
			fmt.Printf("page %d: %s\n", r.Page, r.State)
		},
	})

	// Ctrl-C stops at the next page batch boundary
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Input:  %s\nOutput: %s\n%s -> %s\n\n", input, out, src, tgt)
	result, err := p.Process(ctx, input, out, source)
	if result != nil {
		printSummary(result)
		if rm, rmErr := results.NewManager(*resultsDir); rmErr == nil && result.RunID != "" {
			if saveErr := rm.Save(result); saveErr != nil {
				logger.Warn("could not save run report", logger.Err(saveErr))
			}
		}
	}
	if err != nil {
		fail(err)
	}
}

// detectionSource picks the detection input: a detection file when
// given, otherwise the PDF's own extractable text.
func detectionSource(input, detectionsPath string) (detect.Source, func(), error) {
	if detectionsPath != "" {
		pages, err := detect.Load(detectionsPath)
		if err != nil {
			return nil, nil, err
		}
		return detect.MapSource(pages), func() {}, nil
	}

	ok, err := detect.HasExtractableText(input)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, types.NewAppError(types.ErrScannedPDF,
			"document carries no extractable text; provide -detections from an external model", nil)
	}
	fx, err := detect.OpenFallback(input)
	if err != nil {
		return nil, nil, err
	}
	return fx, func() { fx.Close() }, nil
}

func printSummary(r *types.DocumentResult) {
	fmt.Printf("\nPages reconstructed: %d/%d\n", r.PagesReconstructed, r.PageCount)
	for _, s := range r.PagesSkipped {
		fmt.Printf("  skipped page %d: %s\n", s.Page, s.Reason)
	}
	fmt.Printf("Units translated: %d (truncated: %d)\n", r.UnitsTranslated, r.UnitsTruncated)
	fmt.Printf("Formulas restored: %d (left in place: %d)\n", r.FormulasRestored, r.FormulasLeftInPlace)
	if len(r.Warnings) > 0 {
		fmt.Printf("Warnings: %d (see log for details)\n", len(r.Warnings))
	}
}

func fail(err error) {
	logger.Error("run failed", err)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	logger.Close()
	os.Exit(1)
}
