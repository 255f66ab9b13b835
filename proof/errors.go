package proof

import "errors"

var (
	// ErrKeysNotReady is returned when proving or verifying without keys.
	ErrKeysNotReady       = errors.New("keys not ready")
	ErrKeyShapeMismatch   = errors.New("key was generated for a different shape")
	ErrUnsatisfiedWitness = errors.New("witness does not satisfy the constraint system")
	ErrMalformed          = errors.New("malformed artifact")
)
