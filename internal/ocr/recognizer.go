package ocr

import (
	"context"
	"errors"
)

var ErrOCRNotEnabled = errors.New("ocr support not compiled in; rebuild without -tags noocr")

// Recognizer turns a saved page image into text.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, imagePath string) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, imagePath string) (string, error) {
	return f(ctx, imagePath)
}
