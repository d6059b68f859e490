// Package cudadrv binds cuda.Driver to the system CUDA driver library,
// loaded at run time without cgo.
package cudadrv

import (
	"errors"
)

// DefaultLibrary is the soname of the CUDA driver.
const DefaultLibrary = "libcuda.so.1"

// ErrUnavailable means the driver library cannot be used on this host.
var ErrUnavailable = errors.New("CUDA driver library unavailable")

type Options struct {
	Library string // "" means DefaultLibrary
}
