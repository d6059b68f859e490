package cuda

import (
	"errors"
	"fmt"
)

// Result is a CUDA driver status code.
type Result int

const (
	Success           Result = 0
	ErrInvalidValue   Result = 1
	ErrOutOfMemory    Result = 2
	ErrNotInitialized Result = 3
	ErrNoDevice       Result = 100
	ErrInvalidDevice  Result = 101
	ErrInvalidImage   Result = 200
	ErrInvalidContext Result = 201
	ErrInvalidHandle  Result = 400
	ErrNotFound       Result = 500
	ErrLaunchFailed   Result = 719
	ErrUnknown        Result = 999
)

var resultNames = map[Result]string{
	Success:           "CUDA_SUCCESS",
	ErrInvalidValue:   "CUDA_ERROR_INVALID_VALUE",
	ErrOutOfMemory:    "CUDA_ERROR_OUT_OF_MEMORY",
	ErrNotInitialized: "CUDA_ERROR_NOT_INITIALIZED",
	ErrNoDevice:       "CUDA_ERROR_NO_DEVICE",
	ErrInvalidDevice:  "CUDA_ERROR_INVALID_DEVICE",
	ErrInvalidImage:   "CUDA_ERROR_INVALID_IMAGE",
	ErrInvalidContext: "CUDA_ERROR_INVALID_CONTEXT",
	ErrInvalidHandle:  "CUDA_ERROR_INVALID_HANDLE",
	ErrNotFound:       "CUDA_ERROR_NOT_FOUND",
	ErrLaunchFailed:   "CUDA_ERROR_LAUNCH_FAILED",
	ErrUnknown:        "CUDA_ERROR_UNKNOWN",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("CUDA_ERROR_%d", int(r))
}

// Error is a failed driver call.
type Error struct {
	Op     string // driver entry point, e.g. "cuMemAlloc"
	Result Result
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Result, int(e.Result), e.Detail)
	}
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Result, int(e.Result))
}

// Errorf builds an *Error for op.
func Errorf(op string, r Result, format string, args ...any) *Error {
	return &Error{Op: op, Result: r, Detail: fmt.Sprintf(format, args...)}
}

// Check converts a status code into an error, nil on success.
func Check(op string, r Result) error {
	if r == Success {
		return nil
	}
	return &Error{Op: op, Result: r}
}

// ResultOf extracts the status code of a driver error.
func ResultOf(err error) (Result, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Result, true
	}
	return Success, false
}
