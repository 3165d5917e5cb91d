package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"
)

var ErrUnknownRasterizer = errors.New("unknown rasterizer")

// Rasterizer opens PDFs for page rendering.
type Rasterizer interface {
	Name() string
	Open(ctx context.Context, pdfPath string) (RasterDoc, error)
}

// RasterDoc renders pages of one opened PDF. Pages are 1-based.
type RasterDoc interface {
	NumPages() int
	Render(ctx context.Context, page, dpi int) (image.Image, error)
	Close() error
}

type Registry struct {
	byName map[string]Rasterizer
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Rasterizer)}
}

// DefaultRegistry knows the mupdf and poppler backends.
func DefaultRegistry(poppler PopplerConfig) *Registry {
	r := NewRegistry()
	r.Register(Fitz{})
	r.Register(NewPoppler(poppler))
	return r
}

func (r *Registry) Register(rz Rasterizer) {
	key := strings.ToLower(strings.TrimSpace(rz.Name()))
	if key != "" {
		r.byName[key] = rz
	}
}

func (r *Registry) Resolve(name string) (Rasterizer, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if rz, ok := r.byName[key]; ok {
		return rz, nil
	}
	return nil, fmt.Errorf("%w %q (have %s)", ErrUnknownRasterizer, name, strings.Join(r.Names(), ", "))
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for k := range r.byName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
