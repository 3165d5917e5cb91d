package tables

import (
	"context"
	"errors"
	"fmt"

	"github.com/toricodesthings/document-processor/internal/jsonio"
	"github.com/toricodesthings/document-processor/internal/logging"
)

var ErrOpenPDF = errors.New("cannot open pdf")

// Document is an opened PDF that can report detected tables per page.
// Pages are 1-based.
type Document interface {
	NumPages() (int, error)
	PageGrids(ctx context.Context, page int) ([]Grid, error)
	Close() error
}

// Opener opens a layout document for table detection.
type Opener interface {
	Open(ctx context.Context, path string) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Document, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Document, error) { return f(ctx, path) }

type Extractor struct {
	opener Opener
	log    *logging.Logger
}

type Option func(*Extractor)

func WithLogger(l *logging.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

func New(opener Opener, opts ...Option) *Extractor {
	e := &Extractor{opener: opener, log: logging.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the normalized tables of every page, in page order and then
// detector order.
func (e *Extractor) Extract(ctx context.Context, pdfPath string) ([]Table, error) {
	doc, err := e.opener.Open(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpenPDF, pdfPath, err)
	}
	defer doc.Close()

	n, err := doc.NumPages()
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}

	var out []Table
	for page := 1; page <= n; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		grids, err := doc.PageGrids(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		for i, g := range grids {
			t, ok := FromGrid(g, page, i+1)
			if !ok {
				e.log.Debug("table dropped", "page", page, "table", i+1, "rows", len(g))
				continue
			}
			out = append(out, t)
		}
	}

	e.log.Info(fmt.Sprintf("Extracted %d tables", len(out)), "pages", n)
	return out, nil
}

type tableFile struct {
	Source      string  `json:"source"`
	TotalTables int     `json:"total_tables"`
	Tables      []Table `json:"tables"`
}

// Save writes the table document to path with two-space indentation.
func (e *Extractor) Save(path, source string, tables []Table) error {
	if tables == nil {
		tables = []Table{}
	}
	doc := tableFile{Source: source, TotalTables: len(tables), Tables: tables}
	if err := jsonio.WriteFile(path, doc, true); err != nil {
		return err
	}
	e.log.Info("Saved to: " + path)
	return nil
}
