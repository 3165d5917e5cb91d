// Package ocr rasterizes PDF pages, recognizes their text and extracts the
// raster images embedded in the document.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/toricodesthings/document-processor/internal/jsonio"
	"github.com/toricodesthings/document-processor/internal/logging"
)

const DefaultDPI = 300

type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

type ImageFile struct {
	Page int    `json:"page"`
	File string `json:"img_file"`
}

// Result is the content of the OCR output file.
type Result struct {
	TextByPage []PageText  `json:"text_by_page"`
	Images     []ImageFile `json:"images"`
}

// Processor owns one temp directory for the lifetime of a run. It is not safe
// for concurrent use.
type Processor struct {
	pdfPath    string
	outputJSON string
	tempDir    string

	dpi        int
	format     string
	raster     Rasterizer
	recognizer Recognizer
	images     ImageSource
	log        *logging.Logger

	textByPage []PageText
	imageFiles []ImageFile
}

type Option func(*Processor)

func WithDPI(dpi int) Option {
	return func(p *Processor) {
		if dpi > 0 {
			p.dpi = dpi
		}
	}
}

// WithPageFormat selects the page image encoding: "png" or "tiff".
func WithPageFormat(format string) Option {
	return func(p *Processor) { p.format = format }
}

func WithRasterizer(r Rasterizer) Option {
	return func(p *Processor) { p.raster = r }
}

func WithRecognizer(r Recognizer) Option {
	return func(p *Processor) { p.recognizer = r }
}

func WithImageSource(s ImageSource) Option {
	return func(p *Processor) { p.images = s }
}

func WithLogger(l *logging.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// New prepares a processor and creates tempDir.
func New(pdfPath, outputJSON, tempDir string, opts ...Option) (*Processor, error) {
	p := &Processor{
		pdfPath:    pdfPath,
		outputJSON: outputJSON,
		tempDir:    tempDir,
		dpi:        DefaultDPI,
		format:     "png",
		raster:     Fitz{},
		recognizer: NewTesseract([]string{"eng"}, 0),
		images:     PDFCPUImages{},
		log:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}

	format, err := normalizeFormat(p.format)
	if err != nil {
		return nil, err
	}
	p.format = format

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return p, nil
}

func (p *Processor) TempDir() string { return p.tempDir }

// ExtractText renders every page into the temp dir and recognizes the saved
// image. Pages with no text are kept with an empty string.
func (p *Processor) ExtractText(ctx context.Context) ([]PageText, error) {
	p.textByPage = nil

	doc, err := p.raster.Open(ctx, p.pdfPath)
	if err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", p.pdfPath, err)
	}
	defer doc.Close()

	n := doc.NumPages()
	pages := make([]PageText, 0, n)
	for page := 1; page <= n; page++ {
		img, err := doc.Render(ctx, page, p.dpi)
		if err != nil {
			return nil, err
		}

		imgFile := filepath.Join(p.tempDir, fmt.Sprintf("page_%d.%s", page, p.format))
		if err := writeImage(imgFile, img, p.format); err != nil {
			return nil, fmt.Errorf("save page %d: %w", page, err)
		}

		text, err := Limited(p.recognizer).Recognize(ctx, imgFile)
		if err != nil {
			return nil, fmt.Errorf("ocr page %d: %w", page, err)
		}

		pages = append(pages, PageText{Page: page, Text: strings.TrimSpace(text)})
		p.log.Debug("page recognized", "page", page, "chars", len(text))
	}

	p.textByPage = pages
	return pages, nil
}

// ExtractImages writes each embedded image as page_<p>_img_<i>.<ext>.
func (p *Processor) ExtractImages(ctx context.Context) ([]ImageFile, error) {
	p.imageFiles = nil

	imgs, err := p.images.Images(ctx, p.pdfPath)
	if err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	files := make([]ImageFile, 0, len(imgs))
	for _, img := range imgs {
		name := filepath.Join(p.tempDir, fmt.Sprintf("page_%d_img_%d.%s", img.Page, img.Index, img.Ext))
		if err := os.WriteFile(name, img.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write image: %w", err)
		}
		files = append(files, ImageFile{Page: img.Page, File: name})
	}

	p.imageFiles = files
	return files, nil
}

// Result returns what has been extracted so far.
func (p *Processor) Result() Result {
	r := Result{TextByPage: p.textByPage, Images: p.imageFiles}
	if r.TextByPage == nil {
		r.TextByPage = []PageText{}
	}
	if r.Images == nil {
		r.Images = []ImageFile{}
	}
	return r
}

func (p *Processor) Save() (string, error) {
	if err := jsonio.WriteFile(p.outputJSON, p.Result(), true); err != nil {
		return "", err
	}
	p.log.Info("Saved extracted data to " + p.outputJSON)
	return p.outputJSON, nil
}

// Process extracts text, then images, then writes the output file.
func (p *Processor) Process(ctx context.Context) (Result, error) {
	p.log.Info("Processing PDF: " + p.pdfPath)

	p.log.Info("Extracting text...")
	if _, err := p.ExtractText(ctx); err != nil {
		return Result{}, err
	}

	p.log.Info("Extracting images...")
	if _, err := p.ExtractImages(ctx); err != nil {
		return Result{}, err
	}

	if _, err := p.Save(); err != nil {
		return Result{}, err
	}
	return p.Result(), nil
}

// Cleanup removes the temp dir and everything in it. Calling it again, or on
// a directory that is already gone, does nothing.
func (p *Processor) Cleanup() error {
	if _, err := os.Stat(p.tempDir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(p.tempDir); err != nil {
		return fmt.Errorf("cleanup %s: %w", p.tempDir, err)
	}
	p.log.Info("Cleaned up temporary directory: " + p.tempDir)
	return nil
}
