package engine

import (
	"fmt"

	"kalmap/internal/cuda"
	"kalmap/internal/cuda/cudadrv"
	"kalmap/internal/cuda/simdev"
)

// DriverOptions selects a driver implementation.
type DriverOptions struct {
	Kind    string // "sim", "cuda" or "auto"
	Library string // libcuda path for "cuda" and "auto"
	Sim     simdev.Options
}

// NewDriver builds the driver named by opts.Kind. "auto" uses the system
// CUDA driver when it loads and the simulated device otherwise.
func NewDriver(opts DriverOptions) (cuda.Driver, error) {
	switch opts.Kind {
	case "", "sim":
		return simdev.New(opts.Sim), nil
	case "cuda":
		d, err := cudadrv.Open(cudadrv.Options{Library: opts.Library})
		if err != nil {
			return nil, err
		}
		return d, nil
	case "auto":
		if d, err := cudadrv.Open(cudadrv.Options{Library: opts.Library}); err == nil {
			return d, nil
		}
		return simdev.New(opts.Sim), nil
	}
	return nil, fmt.Errorf("unknown driver %q (want sim, cuda or auto)", opts.Kind)
}
