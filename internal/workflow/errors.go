package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal stage failure. Every kind is terminal for the
// run; classification exists so callers can tell expected business
// failures apart from platform errors, not to enable retries.
type Kind string

const (
	KindPrecondition Kind = "precondition"
	KindAuth         Kind = "auth"
	KindSelection    Kind = "selection"
	KindListing      Kind = "listing"
	KindTransfer     Kind = "transfer"
	KindExtraction   Kind = "extraction"
	KindProvisioning Kind = "provisioning"
)

// StageError carries the failing stage's kind alongside the underlying
// error. All stage failures funnel through the same abort-and-cleanup path.
type StageError struct {
	Kind Kind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func failf(kind Kind, format string, args ...any) error {
	return &StageError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the stage kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return ""
}
