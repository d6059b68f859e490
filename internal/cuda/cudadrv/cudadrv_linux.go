//go:build linux

package cudadrv

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"kalmap/internal/cuda"
)

// Driver calls libcuda through purego. Calls are serialized; CUDA
// contexts are bound to OS threads, so the calling goroutine is locked
// to its thread between CtxCreate and CtxDestroy.
type Driver struct {
	mu  sync.Mutex
	lib uintptr

	cuInit              func(flags uint32) int32
	cuDeviceGetCount    func(count *int32) int32
	cuDeviceGet         func(dev *int32, ordinal int32) int32
	cuDeviceGetName     func(name *byte, n int32, dev int32) int32
	cuDeviceComputeCap  func(major, minor *int32, dev int32) int32
	cuDeviceTotalMem    func(bytes *uint64, dev int32) int32
	cuCtxCreate         func(ctx *uintptr, flags uint32, dev int32) int32
	cuCtxDestroy        func(ctx uintptr) int32
	cuCtxSynchronize    func() int32
	cuModuleLoadData    func(mod *uintptr, image unsafe.Pointer) int32
	cuModuleGetFunction func(fn *uintptr, mod uintptr, name *byte) int32
	cuModuleUnload      func(mod uintptr) int32
	cuMemAlloc          func(ptr *uint64, bytes uint64) int32
	cuMemFree           func(ptr uint64) int32
	cuMemcpyHtoD        func(dst uint64, src unsafe.Pointer, bytes uint64) int32
	cuMemcpyDtoH        func(dst unsafe.Pointer, src uint64, bytes uint64) int32
	cuLaunchKernel      func(fn uintptr, gx, gy, gz, bx, by, bz, shared uint32, stream uintptr, params unsafe.Pointer, extra unsafe.Pointer) int32
}

var _ cuda.Driver = (*Driver)(nil)

// Open loads the driver library and resolves every entry point.
func Open(opts Options) (*Driver, error) {
	path := opts.Library
	if path == "" {
		path = DefaultLibrary
	}
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	d := &Driver{lib: lib}
	syms := []struct {
		fptr any
		name string
	}{
		{&d.cuInit, "cuInit"},
		{&d.cuDeviceGetCount, "cuDeviceGetCount"},
		{&d.cuDeviceGet, "cuDeviceGet"},
		{&d.cuDeviceGetName, "cuDeviceGetName"},
		{&d.cuDeviceComputeCap, "cuDeviceComputeCapability"},
		{&d.cuDeviceTotalMem, "cuDeviceTotalMem_v2"},
		{&d.cuCtxCreate, "cuCtxCreate_v2"},
		{&d.cuCtxDestroy, "cuCtxDestroy_v2"},
		{&d.cuCtxSynchronize, "cuCtxSynchronize"},
		{&d.cuModuleLoadData, "cuModuleLoadData"},
		{&d.cuModuleGetFunction, "cuModuleGetFunction"},
		{&d.cuModuleUnload, "cuModuleUnload"},
		{&d.cuMemAlloc, "cuMemAlloc_v2"},
		{&d.cuMemFree, "cuMemFree_v2"},
		{&d.cuMemcpyHtoD, "cuMemcpyHtoD_v2"},
		{&d.cuMemcpyDtoH, "cuMemcpyDtoH_v2"},
		{&d.cuLaunchKernel, "cuLaunchKernel"},
	}
	for _, s := range syms {
		sym, err := purego.Dlsym(lib, s.name)
		if err != nil {
			_ = purego.Dlclose(lib)
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, s.name, err)
		}
		purego.RegisterFunc(s.fptr, sym)
	}
	return d, nil
}

func (d *Driver) Name() string { return "cuda" }

func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cuda.Check(cuda.OpInit, cuda.Result(d.cuInit(0)))
}

func (d *Driver) DeviceCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int32
	if err := cuda.Check(cuda.OpDeviceGetCount, cuda.Result(d.cuDeviceGetCount(&n))); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (d *Driver) Device(ordinal int) (cuda.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var dev int32
	if err := cuda.Check(cuda.OpDeviceGet, cuda.Result(d.cuDeviceGet(&dev, int32(ordinal)))); err != nil {
		return 0, err
	}
	return cuda.Device(dev), nil
}

func (d *Driver) DeviceName(dev cuda.Device) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := make([]byte, 256)
	if err := cuda.Check(cuda.OpDeviceGetName, cuda.Result(d.cuDeviceGetName(&buf[0], int32(len(buf)), int32(dev)))); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

func (d *Driver) ComputeCapability(dev cuda.Device) (major, minor int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ma, mi int32
	if err := cuda.Check(cuda.OpComputeCapability, cuda.Result(d.cuDeviceComputeCap(&ma, &mi, int32(dev)))); err != nil {
		return 0, 0, err
	}
	return int(ma), int(mi), nil
}

func (d *Driver) TotalMem(dev cuda.Device) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n uint64
	if err := cuda.Check(cuda.OpDeviceTotalMem, cuda.Result(d.cuDeviceTotalMem(&n, int32(dev)))); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Driver) CtxCreate(dev cuda.Device) (cuda.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	runtime.LockOSThread()
	var c uintptr
	if err := cuda.Check(cuda.OpCtxCreate, cuda.Result(d.cuCtxCreate(&c, 0, int32(dev)))); err != nil {
		runtime.UnlockOSThread()
		return 0, err
	}
	return cuda.Context(c), nil
}

func (d *Driver) CtxDestroy(c cuda.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := cuda.Check(cuda.OpCtxDestroy, cuda.Result(d.cuCtxDestroy(uintptr(c))))
	runtime.UnlockOSThread()
	return err
}

func (d *Driver) CtxSynchronize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cuda.Check(cuda.OpCtxSynchronize, cuda.Result(d.cuCtxSynchronize()))
}

// ModuleLoadData loads PTX text; the driver expects it NUL-terminated.
func (d *Driver) ModuleLoadData(image []byte) (cuda.Module, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := append(append([]byte(nil), image...), 0)
	var m uintptr
	r := d.cuModuleLoadData(&m, unsafe.Pointer(&img[0]))
	runtime.KeepAlive(img)
	if err := cuda.Check(cuda.OpModuleLoadData, cuda.Result(r)); err != nil {
		return 0, err
	}
	return cuda.Module(m), nil
}

func (d *Driver) ModuleGetFunction(m cuda.Module, name string) (cuda.Function, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cname := append([]byte(name), 0)
	var fn uintptr
	if err := cuda.Check(cuda.OpModuleGetFunction, cuda.Result(d.cuModuleGetFunction(&fn, uintptr(m), &cname[0]))); err != nil {
		return 0, err
	}
	return cuda.Function(fn), nil
}

func (d *Driver) ModuleUnload(m cuda.Module) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cuda.Check(cuda.OpModuleUnload, cuda.Result(d.cuModuleUnload(uintptr(m))))
}

func (d *Driver) MemAlloc(bytes uint64) (cuda.DevicePtr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var p uint64
	if err := cuda.Check(cuda.OpMemAlloc, cuda.Result(d.cuMemAlloc(&p, bytes))); err != nil {
		return 0, err
	}
	return cuda.DevicePtr(p), nil
}

func (d *Driver) MemFree(p cuda.DevicePtr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cuda.Check(cuda.OpMemFree, cuda.Result(d.cuMemFree(uint64(p))))
}

func (d *Driver) MemcpyHtoD(dst cuda.DevicePtr, src []float64) error {
	if len(src) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.cuMemcpyHtoD(uint64(dst), unsafe.Pointer(&src[0]), uint64(len(src))*8)
	runtime.KeepAlive(src)
	return cuda.Check(cuda.OpMemcpyHtoD, cuda.Result(r))
}

func (d *Driver) MemcpyDtoH(dst []float64, src cuda.DevicePtr) error {
	if len(dst) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.cuMemcpyDtoH(unsafe.Pointer(&dst[0]), uint64(src), uint64(len(dst))*8)
	runtime.KeepAlive(dst)
	return cuda.Check(cuda.OpMemcpyDtoH, cuda.Result(r))
}

// LaunchKernel enqueues fn on the default stream; CtxSynchronize waits
// for it.
func (d *Driver) LaunchKernel(_ context.Context, fn cuda.Function, cfg cuda.LaunchConfig, args []cuda.DevicePtr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vals := make([]uint64, len(args))
	params := make([]unsafe.Pointer, len(args))
	for i, a := range args {
		vals[i] = uint64(a)
		params[i] = unsafe.Pointer(&vals[i])
	}
	var pp unsafe.Pointer
	if len(params) > 0 {
		pp = unsafe.Pointer(&params[0])
	}
	r := d.cuLaunchKernel(uintptr(fn), cfg.GridX, cfg.GridY, cfg.GridZ, cfg.BlockX, cfg.BlockY, cfg.BlockZ, cfg.SharedMem, 0, pp, nil)
	runtime.KeepAlive(vals)
	runtime.KeepAlive(params)
	return cuda.Check(cuda.OpLaunchKernel, cuda.Result(r))
}
