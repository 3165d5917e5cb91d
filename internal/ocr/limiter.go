package ocr

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// slots is the process-wide recognition budget; nil means unbounded.
var slots atomic.Pointer[semaphore.Weighted]

// SetConcurrencyLimit bounds simultaneous recognitions across all processors.
// max <= 0 removes the bound. Calls already waiting keep the old budget.
func SetConcurrencyLimit(max int64) {
	if max <= 0 {
		slots.Store(nil)
		return
	}
	slots.Store(semaphore.NewWeighted(max))
}

type limitedRecognizer struct {
	next Recognizer
}

// Limited wraps r so every call holds one slot of the shared budget.
func Limited(r Recognizer) Recognizer {
	if _, ok := r.(limitedRecognizer); ok {
		return r
	}
	return limitedRecognizer{next: r}
}

func (l limitedRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	sem := slots.Load()
	if sem == nil {
		return l.next.Recognize(ctx, imagePath)
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for ocr slot: %w", err)
	}
	defer sem.Release(1)
	return l.next.Recognize(ctx, imagePath)
}
