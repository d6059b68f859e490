package engine

import (
	"errors"
	"fmt"
)

// ErrNoDevice means no device meets the capability floor.
var ErrNoDevice = errors.New("no suitable CUDA device")

// FatalError is a device runtime failure. The session it happened in has
// been torn down; there is no recovery beyond reporting it.
type FatalError struct {
	State State // last state reached before the failure
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("device runtime failure after %s: %v", e.State, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(s State, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{State: s, Err: err}
}
