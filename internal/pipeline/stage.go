package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var ErrStageFailed = errors.New("stage failed")

type Stage string

const (
	StageTables  Stage = "tables"
	StageOCR     Stage = "ocr"
	StageCombine Stage = "combine"
	StageExport  Stage = "export"
	StagePublish Stage = "publish"
)

// StageResult records how one stage went. Err is nil on success.
type StageResult struct {
	Stage    Stage         `json:"stage"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration_ns"`
}

func (r StageResult) OK() bool { return r.Err == nil }

// StageError wraps the failing stage. It matches both ErrStageFailed and the
// underlying cause with errors.Is.
type StageError struct {
	Result StageResult
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Result.Stage, e.Result.Err)
}

func (e *StageError) Unwrap() []error { return []error{ErrStageFailed, e.Result.Err} }

// FailedStage reports the stage that produced err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Result.Stage, true
	}
	return "", false
}
