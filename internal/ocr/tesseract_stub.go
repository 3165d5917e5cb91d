//go:build noocr

package ocr

import "context"

// Tesseract is unavailable in noocr builds; every call fails with
// ErrOCRNotEnabled.
type Tesseract struct{}

func NewTesseract([]string, int) *Tesseract { return &Tesseract{} }

func (*Tesseract) Recognize(context.Context, string) (string, error) {
	return "", ErrOCRNotEnabled
}
