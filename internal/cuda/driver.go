// Package cuda defines the device driver contract the execution engine
// talks to. It mirrors the subset of the CUDA driver API a map launch
// needs; internal/cuda/simdev and internal/cuda/cudadrv implement it.
package cuda

import (
	"context"
	"fmt"
)

type (
	Device    int32
	Context   uintptr
	Module    uintptr
	Function  uintptr
	DevicePtr uint64
)

// LaunchConfig is the single launch shape used by every kernel ABI.
type LaunchConfig struct {
	GridX, GridY, GridZ    uint32
	BlockX, BlockY, BlockZ uint32
	SharedMem              uint32
}

// Threads returns the total number of threads launched.
func (c LaunchConfig) Threads() uint64 {
	return uint64(c.GridX) * uint64(c.GridY) * uint64(c.GridZ) *
		uint64(c.BlockX) * uint64(c.BlockY) * uint64(c.BlockZ)
}

func (c LaunchConfig) String() string {
	return fmt.Sprintf("grid=(%d,%d,%d) block=(%d,%d,%d)", c.GridX, c.GridY, c.GridZ, c.BlockX, c.BlockY, c.BlockZ)
}

// Driver is a device runtime. A context created by CtxCreate becomes
// current; memory, module and launch calls act on the current context.
type Driver interface {
	// Name identifies the implementation ("sim", "cuda").
	Name() string

	Init() error
	DeviceCount() (int, error)
	Device(ordinal int) (Device, error)
	DeviceName(d Device) (string, error)
	ComputeCapability(d Device) (major, minor int, err error)
	TotalMem(d Device) (uint64, error)

	CtxCreate(d Device) (Context, error)
	CtxDestroy(c Context) error
	CtxSynchronize() error

	ModuleLoadData(image []byte) (Module, error)
	ModuleGetFunction(m Module, name string) (Function, error)
	ModuleUnload(m Module) error

	MemAlloc(bytes uint64) (DevicePtr, error)
	MemFree(p DevicePtr) error
	MemcpyHtoD(dst DevicePtr, src []float64) error
	MemcpyDtoH(dst []float64, src DevicePtr) error

	// LaunchKernel enqueues fn with the given pointer arguments.
	LaunchKernel(ctx context.Context, fn Function, cfg LaunchConfig, args []DevicePtr) error
}
