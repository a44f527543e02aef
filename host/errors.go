package host

import (
	"errors"
	"fmt"
)

// Error kinds. Every pipeline failure is a *StageError whose Kind is one of
// these; errors.Is matches both the kind and the underlying cause.
var (
	ErrMalformedInput     = errors.New("malformed input")
	ErrExecutionFault     = errors.New("execution fault")
	ErrVerificationFailed = errors.New("verification failed")
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrKeygenFailed       = errors.New("key generation failed")
	ErrCancelled          = errors.New("cancelled")
)

var (
	ErrPipelineUsed      = errors.New("host: pipeline already run")
	ErrNilProver         = errors.New("host: nil prover")
	ErrPlaintextMismatch = errors.New("host: decrypted plaintext does not match")
)

// StageError reports where a pipeline aborted. Stage is the state the
// pipeline was trying to reach; After is the last state it completed.
type StageError struct {
	Stage State
	After State
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("host: %s (after %s): %v: %v", e.Stage, e.After, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
