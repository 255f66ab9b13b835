package circuit

import (
	"errors"
	"fmt"
)

var (
	ErrShapeMismatch       = errors.New("shape mismatch")
	ErrTransitionViolation = errors.New("transition violation")
	ErrCommitmentMismatch  = errors.New("commitment mismatch")
	ErrBoundaryMismatch    = errors.New("boundary mismatch")
)

// ArithmetizationError reports why a trace cannot be turned into a
// satisfied instance. Step is the trace row at fault, or -1 when the
// failure is not tied to a row.
type ArithmetizationError struct {
	Step int
	Err  error
}

func (e *ArithmetizationError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("arithmetization: %v", e.Err)
	}
	return fmt.Sprintf("arithmetization: step %d: %v", e.Step, e.Err)
}

func (e *ArithmetizationError) Unwrap() error {
	return e.Err
}

func fail(step int, kind error, format string, args ...interface{}) error {
	return &ArithmetizationError{Step: step, Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))}
}

func wrap(step int, kind error, err error) error {
	return &ArithmetizationError{Step: step, Err: fmt.Errorf("%w: %w", kind, err)}
}
