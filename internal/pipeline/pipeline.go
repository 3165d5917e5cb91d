// Package pipeline runs table extraction, OCR and combination in order for
// one input document.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/toricodesthings/document-processor/internal/combine"
	"github.com/toricodesthings/document-processor/internal/config"
	"github.com/toricodesthings/document-processor/internal/export"
	"github.com/toricodesthings/document-processor/internal/logging"
	"github.com/toricodesthings/document-processor/internal/ocr"
	"github.com/toricodesthings/document-processor/internal/storage"
	"github.com/toricodesthings/document-processor/internal/tables"
)

// Deps are the backends a run uses. Nil fields fall back to the defaults
// built from config.
type Deps struct {
	Tables     tables.Opener
	Rasterizer ocr.Rasterizer
	Recognizer ocr.Recognizer
	Images     ocr.ImageSource
	// Store receives the combined file when set.
	Store storage.Storage
}

type Options struct {
	DPI             int
	PageImageFormat string
	// Minify selects compact combined output.
	Minify bool
	// PublishPrefix is the object key prefix for published results.
	PublishPrefix string
}

type Runner struct {
	deps Deps
	opts Options
	log  *logging.Logger
}

func New(deps Deps, opts Options, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.Discard()
	}
	if opts.DPI <= 0 {
		opts.DPI = ocr.DefaultDPI
	}
	if deps.Tables == nil {
		deps.Tables = tables.TabulaOpener{}
	}
	if deps.Rasterizer == nil {
		deps.Rasterizer = ocr.Fitz{}
	}
	if deps.Recognizer == nil {
		deps.Recognizer = ocr.NewTesseract([]string{"eng"}, 0)
	}
	if deps.Images == nil {
		deps.Images = ocr.PDFCPUImages{}
	}
	return &Runner{deps: deps, opts: opts, log: log}
}

// FromConfig wires the configured backends. store may be nil.
func FromConfig(cfg config.Config, store storage.Storage, log *logging.Logger) (*Runner, error) {
	if log == nil {
		log = logging.Discard()
	}
	raster, err := ocr.DefaultRegistry(ocr.PopplerConfig{
		PDFInfoTimeout:  cfg.PDFInfoTimeout,
		PDFToPPMTimeout: cfg.PDFToPPMTimeout,
		Logger:          log,
	}).Resolve(cfg.Rasterizer)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Tables:     tables.TabulaOpener{MinConfidence: cfg.TableMinConfidence},
		Rasterizer: raster,
		Recognizer: ocr.NewTesseract(cfg.Languages(), cfg.OCRPageSegMode),
		Images:     ocr.PDFCPUImages{},
		Store:      store,
	}
	opts := Options{
		DPI:             cfg.DPI,
		PageImageFormat: cfg.PageImageFormat,
		Minify:          true,
		PublishPrefix:   cfg.S3Prefix,
	}
	return New(deps, opts, log), nil
}

// WithMinify returns a copy of r writing compact or indented output.
func (r *Runner) WithMinify(minify bool) *Runner {
	cp := *r
	cp.opts.Minify = minify
	return &cp
}

// Report describes a finished or failed run.
type Report struct {
	Stages       []StageResult
	Tables       []tables.Table
	Combined     combine.Combined
	OCR          ocr.Result
	PublishedKey string
}

// Run executes the stages in order and stops at the first failure, which is
// returned as a *StageError. The OCR work dir is removed when Run returns.
func (r *Runner) Run(ctx context.Context, p Paths) (Report, error) {
	var rep Report

	if err := p.validate(); err != nil {
		return rep, err
	}
	if err := p.ensureDirs(); err != nil {
		return rep, err
	}

	run := func(stage Stage, fn func() error) error {
		start := time.Now()
		err := fn()
		res := StageResult{Stage: stage, Err: err, Duration: time.Since(start)}
		rep.Stages = append(rep.Stages, res)
		if err != nil {
			r.log.Error("stage failed", "stage", stage, "error", err, "duration", res.Duration)
			return &StageError{Result: res}
		}
		r.log.Debug("stage done", "stage", stage, "duration", res.Duration)
		return nil
	}

	extractor := tables.New(r.deps.Tables, tables.WithLogger(r.log))
	if err := run(StageTables, func() error {
		t, err := extractor.Extract(ctx, p.Input)
		if err != nil {
			return err
		}
		rep.Tables = t
		return extractor.Save(p.TableOutput, p.Input, t)
	}); err != nil {
		return rep, err
	}

	var proc *ocr.Processor
	defer func() {
		if proc == nil {
			return
		}
		if err := proc.Cleanup(); err != nil {
			r.log.Warn("cleanup failed", "dir", p.OCRWorkDir, "error", err)
		}
	}()

	if err := run(StageOCR, func() error {
		var err error
		proc, err = ocr.New(p.Input, p.OCROutput, p.OCRWorkDir,
			ocr.WithDPI(r.opts.DPI),
			ocr.WithPageFormat(r.opts.PageImageFormat),
			ocr.WithRasterizer(r.deps.Rasterizer),
			ocr.WithRecognizer(r.deps.Recognizer),
			ocr.WithImageSource(r.deps.Images),
			ocr.WithLogger(r.log),
		)
		if err != nil {
			return err
		}
		rep.OCR, err = proc.Process(ctx)
		return err
	}); err != nil {
		return rep, err
	}

	if err := run(StageCombine, func() error {
		c := combine.New(r.log)
		combined, err := c.LoadAndCombine(p.TableOutput, p.OCROutput)
		if err != nil {
			return err
		}
		rep.Combined = combined
		return c.SaveCombined(p.Output, r.opts.Minify)
	}); err != nil {
		return rep, err
	}

	if p.XLSX != "" {
		if err := run(StageExport, func() error {
			if err := export.WriteXLSX(ctx, p.XLSX, rep.Tables); err != nil {
				return err
			}
			r.log.Info("Tables exported: "+p.XLSX, "sheets", len(rep.Tables))
			return nil
		}); err != nil {
			return rep, err
		}
	}

	if r.deps.Store != nil {
		if err := run(StagePublish, func() error {
			data, err := os.ReadFile(p.Output)
			if err != nil {
				return err
			}
			key := storage.ResultKey(r.opts.PublishPrefix, filepath.Base(p.Input))
			if err := r.deps.Store.Upload(ctx, key, data, "application/json"); err != nil {
				return err
			}
			rep.PublishedKey = key
			r.log.Info("Combined file published", "key", key, "bytes", len(data))
			return nil
		}); err != nil {
			return rep, err
		}
	}

	return rep, nil
}

// Summary is a short human-readable line for logs and the CLI.
func (rep Report) Summary() string {
	var total time.Duration
	for _, s := range rep.Stages {
		total += s.Duration
	}
	return fmt.Sprintf("%d tables, %d text pages, %d images in %s",
		len(rep.Combined.Tables), len(rep.Combined.Text), len(rep.OCR.Images), total.Round(time.Millisecond))
}
