package tables

import (
	"context"
	"fmt"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	detect "github.com/tsawler/tabula/tables"
)

// TabulaOpener opens documents with the tabula reader and runs its geometric
// table detector over each page's text fragments and ruling lines. Detected
// regions are re-laid out into cells by cellGrid; the detector's own grid
// follows every fragment edge and splits single columns apart.
type TabulaOpener struct {
	// MinConfidence overrides DefaultMinConfidence when positive.
	MinConfidence float64
}

func (o TabulaOpener) Open(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := reader.Open(path)
	if err != nil {
		return nil, err
	}

	cfg := detect.DefaultConfig()
	cfg.MinConfidence = DefaultMinConfidence
	if o.MinConfidence > 0 {
		cfg.MinConfidence = o.MinConfidence
	}
	det := detect.NewGeometricDetector()
	if err := det.Configure(cfg); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("configure detector: %w", err)
	}

	return &tabulaDoc{r: r, det: det}, nil
}

type tabulaDoc struct {
	r   *reader.Reader
	det *detect.GeometricDetector
}

func (d *tabulaDoc) NumPages() (int, error) { return d.r.PageCount() }

func (d *tabulaDoc) Close() error { return d.r.Close() }

func (d *tabulaDoc) PageGrids(ctx context.Context, page int) ([]Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := d.r.GetPage(page - 1)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}

	mp, err := d.layoutPage(p, page)
	if err != nil {
		return nil, err
	}
	if len(mp.RawText) == 0 {
		return nil, nil
	}

	found, err := d.det.Detect(mp)
	if err != nil {
		return nil, fmt.Errorf("detect tables: %w", err)
	}

	grids := make([]Grid, 0, len(found))
	for _, t := range found {
		if g, ok := cellGrid(mp.RawText, mp.RawLines, t.BBox); ok {
			grids = append(grids, g)
		}
	}
	return grids, nil
}

// layoutPage builds the detector's view of a page: positioned text plus the
// stroked lines and rectangles drawn by the content stream.
func (d *tabulaDoc) layoutPage(p *pages.Page, number int) (*model.Page, error) {
	w, err := p.Width()
	if err != nil {
		return nil, fmt.Errorf("page width: %w", err)
	}
	h, err := p.Height()
	if err != nil {
		return nil, fmt.Errorf("page height: %w", err)
	}

	mp := model.NewPage(w, h)
	mp.Number = number

	frags, err := d.r.ExtractTextFragments(p)
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	for _, f := range frags {
		mp.RawText = append(mp.RawText, model.TextFragment{
			Text:     f.Text,
			BBox:     model.NewBBox(f.X, f.Y, f.Width, f.Height),
			FontSize: f.FontSize,
			FontName: f.FontName,
		})
	}

	content, err := contentBytes(p)
	if err != nil {
		return nil, err
	}
	if len(content) > 0 {
		ge := graphicsstate.NewGraphicsExtractor()
		// Ruling lines only sharpen detection; a page whose graphics cannot be
		// parsed is still searched by text alignment.
		if err := ge.ExtractFromBytes(content); err == nil {
			mp.RawLines = append(mp.RawLines, ge.ToModelLines()...)
			mp.RawLines = append(mp.RawLines, ge.ToModelRectangles()...)
		}
	}
	return mp, nil
}

func contentBytes(p *pages.Page) ([]byte, error) {
	objs, err := p.Contents()
	if err != nil {
		return nil, fmt.Errorf("page contents: %w", err)
	}
	var data []byte
	for _, obj := range objs {
		s, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		b, err := s.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode content stream: %w", err)
		}
		data = append(data, b...)
	}
	return data, nil
}
