package model

import (
	"errors"
	"fmt"
	"time"
)

// Pass-level failures. Either one aborts the pass; per-posting errors never
// carry these.
var (
	ErrSourceUnavailable = errors.New("job source unavailable")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// Stage identifies where a posting's pipeline failed.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StagePersist  Stage = "persist"
	StageTimeout  Stage = "timeout"
	StageCanceled Stage = "canceled"
)

// StageError records the failing stage for one posting. It is captured into
// the posting's Result, never propagated out of the batch processor.
type StageError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded on err, or "" if err carries none.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
