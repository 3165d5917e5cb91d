package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// Fitz renders pages with MuPDF.
type Fitz struct{}

func (Fitz) Name() string { return "fitz" }

func (Fitz) Open(ctx context.Context, pdfPath string) (RasterDoc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("mupdf open: %w", err)
	}
	return &fitzDoc{doc: doc}, nil
}

type fitzDoc struct {
	doc *fitz.Document
}

func (d *fitzDoc) NumPages() int { return d.doc.NumPage() }

func (d *fitzDoc) Render(ctx context.Context, page, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := d.doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("mupdf render page %d: %w", page, err)
	}
	return img, nil
}

func (d *fitzDoc) Close() error { return d.doc.Close() }
