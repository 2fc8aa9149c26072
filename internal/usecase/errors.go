package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies why a run stopped.
type Kind string

const (
	// KindDataSourceUnavailable means a store the stage depends on could not be reached.
	KindDataSourceUnavailable Kind = "DataSourceUnavailable"
	// KindCancelled means the caller cancelled the run.
	KindCancelled Kind = "Cancelled"
	// KindInternal means the pipeline broke its own state contract.
	KindInternal Kind = "Internal"
)

var (
	ErrDataSourceUnavailable = errors.New("data source unavailable")
	ErrCancelled             = errors.New("run cancelled")
	ErrFieldAlreadySet       = errors.New("pipeline state field already set")
)

// StageError names the stage and kind of a fatal run failure.
type StageError struct {
	Stage Phase
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// MarshalJSON renders the error as {stage, kind, error} for CLI and HTTP output.
func (e *StageError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Stage Phase  `json:"stage"`
		Kind  Kind   `json:"kind"`
		Error string `json:"error"`
	}{Stage: e.Stage, Kind: e.Kind, Error: msg})
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDataSourceUnavailable, err)
}

func classify(ctx context.Context, err error) Kind {
	switch {
	case ctx.Err() != nil, errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrFieldAlreadySet):
		return KindInternal
	default:
		return KindDataSourceUnavailable
	}
}
