//go:build !noocr

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes page images with a fresh gosseract client per call.
type Tesseract struct {
	languages []string
	psm       int
}

// NewTesseract requires tesseract and its language data to be installed.
// A psm of 0 keeps the engine default.
func NewTesseract(languages []string, psm int) *Tesseract {
	return &Tesseract{languages: languages, psm: psm}
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := gosseract.NewClient()
	defer c.Close()

	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return "", fmt.Errorf("tesseract language: %w", err)
		}
	}
	if t.psm > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(t.psm)); err != nil {
			return "", fmt.Errorf("tesseract psm: %w", err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}
