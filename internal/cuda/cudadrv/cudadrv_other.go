//go:build !linux

package cudadrv

import (
	"context"
	"fmt"
	"runtime"

	"kalmap/internal/cuda"
)

// Driver is never constructed on this platform.
type Driver struct{}

var _ cuda.Driver = (*Driver)(nil)

func Open(Options) (*Driver, error) {
	return nil, fmt.Errorf("%w on %s", ErrUnavailable, runtime.GOOS)
}

func (*Driver) Name() string {
	return "cuda"
}

func (*Driver) Init() error {
	return ErrUnavailable
}

func (*Driver) DeviceCount() (int, error) {
	return 0, ErrUnavailable
}

func (*Driver) Device(int) (cuda.Device, error) {
	return 0, ErrUnavailable
}

func (*Driver) DeviceName(cuda.Device) (string, error) {
	return "", ErrUnavailable
}

func (*Driver) ComputeCapability(cuda.Device) (int, int, error) {
	return 0, 0, ErrUnavailable
}

func (*Driver) TotalMem(cuda.Device) (uint64, error) {
	return 0, ErrUnavailable
}

func (*Driver) CtxCreate(cuda.Device) (cuda.Context, error) {
	return 0, ErrUnavailable
}

func (*Driver) CtxDestroy(cuda.Context) error {
	return ErrUnavailable
}

func (*Driver) CtxSynchronize() error {
	return ErrUnavailable
}

func (*Driver) ModuleLoadData([]byte) (cuda.Module, error) {
	return 0, ErrUnavailable
}

func (*Driver) ModuleGetFunction(cuda.Module, string) (cuda.Function, error) {
	return 0, ErrUnavailable
}

func (*Driver) ModuleUnload(cuda.Module) error {
	return ErrUnavailable
}

func (*Driver) MemAlloc(uint64) (cuda.DevicePtr, error) {
	return 0, ErrUnavailable
}

func (*Driver) MemFree(cuda.DevicePtr) error {
	return ErrUnavailable
}

func (*Driver) MemcpyHtoD(cuda.DevicePtr, []float64) error {
	return ErrUnavailable
}

func (*Driver) MemcpyDtoH([]float64, cuda.DevicePtr) error {
	return ErrUnavailable
}

func (*Driver) LaunchKernel(context.Context, cuda.Function, cuda.LaunchConfig, []cuda.DevicePtr) error {
	return ErrUnavailable
}
