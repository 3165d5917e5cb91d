package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// EmbeddedImage is one raster image stored in the PDF. Index is 1-based per
// page, ordered by object number.
type EmbeddedImage struct {
	Page  int
	Index int
	Ext   string
	Data  []byte
}

// ImageSource lists the embedded raster images of a PDF.
type ImageSource interface {
	Images(ctx context.Context, pdfPath string) ([]EmbeddedImage, error)
}

// PDFCPUImages extracts image streams with pdfcpu without re-encoding them.
type PDFCPUImages struct{}

var disableConfigDir sync.Once

func (PDFCPUImages) Images(ctx context.Context, pdfPath string) ([]EmbeddedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	disableConfigDir.Do(api.DisableConfigDir)

	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	perPage, err := api.ExtractImagesRaw(f, nil, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu images: %w", err)
	}

	var all []model.Image
	for _, byObj := range perPage {
		for _, img := range byObj {
			// pdfcpu renders no reader for color spaces and filters it cannot decode.
			if img.Reader == nil {
				continue
			}
			all = append(all, img)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].PageNr != all[j].PageNr {
			return all[i].PageNr < all[j].PageNr
		}
		return all[i].ObjNr < all[j].ObjNr
	})

	out := make([]EmbeddedImage, 0, len(all))
	counts := map[int]int{}
	for _, img := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return nil, fmt.Errorf("read image page %d obj %d: %w", img.PageNr, img.ObjNr, err)
		}
		counts[img.PageNr]++
		out = append(out, EmbeddedImage{
			Page:  img.PageNr,
			Index: counts[img.PageNr],
			Ext:   imageExt(img.FileType, data),
			Data:  data,
		})
	}
	return out, nil
}

// imageExt prefers the reported type, then content sniffing, then "bin".
func imageExt(reported string, data []byte) string {
	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(reported)), ".")
	if ext != "" {
		return ext
	}
	if mt := mimetype.Detect(data); mt.Extension() != "" {
		return strings.TrimPrefix(mt.Extension(), ".")
	}
	return "bin"
}
