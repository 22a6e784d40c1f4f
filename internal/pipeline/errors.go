package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// AcquisitionError is a failure to obtain search results or page text.
// It ends one company's pipeline with a failed record and never the batch.
type AcquisitionError struct {
	Provider string
	Op       string
	Err      error
}

// NewAcquisitionError wraps err from provider's op ("search" or "fetch").
func NewAcquisitionError(provider, op string, err error) *AcquisitionError {
	return &AcquisitionError{Provider: provider, Op: op, Err: err}
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the acquisition ran out of time.
func (e *AcquisitionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

func asAcquisition(provider, op string, err error) *AcquisitionError {
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return ae
	}
	return NewAcquisitionError(provider, op, err)
}
