package usage

import (
	"errors"
	"fmt"
)

// FatalError is an auth or permission failure from the usage data source.
// It aborts the run immediately: without a usage profile there is nothing to
// classify against, and retrying will not help.
type FatalError struct {
	Status int
	Err    error
}

func (e *FatalError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("usage source rejected request (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("usage source rejected request: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
