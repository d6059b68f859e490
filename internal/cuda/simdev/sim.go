// Package simdev is a software device implementing cuda.Driver. Kernels
// are simulated device images (see EncodeImage) executed by the IR
// interpreter: blocks run concurrently on a bounded set of goroutines,
// threads of one block run in order on the goroutine that owns the block.
package simdev

import (
	"context"
	"runtime"
	"sync"

	"kalmap/internal/cuda"
	"kalmap/internal/ir"
)

// DeviceSpec describes one simulated device.
type DeviceSpec struct {
	Name               string
	Major, Minor       int
	TotalMem           uint64
	MaxThreadsPerBlock int
}

// DefaultDevice is used when Options.Devices is empty.
var DefaultDevice = DeviceSpec{
	Name:               "kalmap simulated device",
	Major:              3,
	Minor:              5,
	TotalMem:           1 << 30,
	MaxThreadsPerBlock: 1024,
}

type Options struct {
	Devices []DeviceSpec
	Workers int // concurrent blocks; 0 means GOMAXPROCS
}

type simContext struct {
	device cuda.Device
}

type simModule struct {
	ctx cuda.Context
	mod *ir.Module
}

type simFunction struct {
	module cuda.Module
	name   string
}

type buffer struct {
	ctx  cuda.Context
	data []float64
}

// Sim is the simulated driver. All methods are safe for concurrent use.
type Sim struct {
	mu   sync.Mutex
	opts Options

	initialized bool
	current     cuda.Context
	nextHandle  uintptr
	nextPtr     cuda.DevicePtr

	contexts  map[cuda.Context]*simContext
	modules   map[cuda.Module]*simModule
	functions map[cuda.Function]simFunction
	buffers   map[cuda.DevicePtr]*buffer
	allocated map[cuda.Context]uint64

	faults    map[string]cuda.Result
	launches  int
	reclaimed int
}

var _ cuda.Driver = (*Sim)(nil)

// New creates a simulated driver.
func New(opts Options) *Sim {
	if len(opts.Devices) == 0 {
		opts.Devices = []DeviceSpec{DefaultDevice}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Sim{
		opts:      opts,
		nextPtr:   0x10000,
		contexts:  make(map[cuda.Context]*simContext),
		modules:   make(map[cuda.Module]*simModule),
		functions: make(map[cuda.Function]simFunction),
		buffers:   make(map[cuda.DevicePtr]*buffer),
		allocated: make(map[cuda.Context]uint64),
		faults:    make(map[string]cuda.Result),
	}
}

func (s *Sim) Name() string { return "sim" }

// FailNext makes the next call of op fail with r.
func (s *Sim) FailNext(op string, r cuda.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = r
}

// fault reports an injected failure for op. Callers hold s.mu.
func (s *Sim) fault(op string) error {
	if r, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return cuda.Errorf(op, r, "injected")
	}
	return nil
}

func (s *Sim) handle() uintptr {
	s.nextHandle++
	return s.nextHandle
}

// LiveContexts counts contexts not yet destroyed.
func (s *Sim) LiveContexts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

// LiveModules counts modules not yet unloaded.
func (s *Sim) LiveModules() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.modules)
}

// LiveBuffers counts device allocations not yet freed.
func (s *Sim) LiveBuffers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers)
}

// Reclaimed counts resources released implicitly by CtxDestroy instead of
// their own free or unload call.
func (s *Sim) Reclaimed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reclaimed
}

// Launches counts successful kernel launches.
func (s *Sim) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches
}

func (s *Sim) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(cuda.OpInit); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

func (s *Sim) ready(op string) error {
	if !s.initialized {
		return cuda.Errorf(op, cuda.ErrNotInitialized, "driver not initialized")
	}
	return s.fault(op)
}

func (s *Sim) spec(op string, d cuda.Device) (DeviceSpec, error) {
	if d < 0 || int(d) >= len(s.opts.Devices) {
		return DeviceSpec{}, cuda.Errorf(op, cuda.ErrInvalidDevice, "device %d", d)
	}
	return s.opts.Devices[d], nil
}

func (s *Sim) DeviceCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpDeviceGetCount); err != nil {
		return 0, err
	}
	return len(s.opts.Devices), nil
}

func (s *Sim) Device(ordinal int) (cuda.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpDeviceGet); err != nil {
		return 0, err
	}
	if ordinal < 0 || ordinal >= len(s.opts.Devices) {
		return 0, cuda.Errorf(cuda.OpDeviceGet, cuda.ErrInvalidDevice, "ordinal %d", ordinal)
	}
	return cuda.Device(ordinal), nil
}

func (s *Sim) DeviceName(d cuda.Device) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpDeviceGetName); err != nil {
		return "", err
	}
	spec, err := s.spec(cuda.OpDeviceGetName, d)
	return spec.Name, err
}

func (s *Sim) ComputeCapability(d cuda.Device) (major, minor int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpComputeCapability); err != nil {
		return 0, 0, err
	}
	spec, err := s.spec(cuda.OpComputeCapability, d)
	return spec.Major, spec.Minor, err
}

func (s *Sim) TotalMem(d cuda.Device) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpDeviceTotalMem); err != nil {
		return 0, err
	}
	spec, err := s.spec(cuda.OpDeviceTotalMem, d)
	return spec.TotalMem, err
}

func (s *Sim) CtxCreate(d cuda.Device) (cuda.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpCtxCreate); err != nil {
		return 0, err
	}
	if _, err := s.spec(cuda.OpCtxCreate, d); err != nil {
		return 0, err
	}
	c := cuda.Context(s.handle())
	s.contexts[c] = &simContext{device: d}
	s.current = c
	return c, nil
}

// CtxDestroy destroys c together with any module or buffer still attached
// to it.
func (s *Sim) CtxDestroy(c cuda.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpCtxDestroy); err != nil {
		return err
	}
	if _, ok := s.contexts[c]; !ok {
		return cuda.Errorf(cuda.OpCtxDestroy, cuda.ErrInvalidContext, "context %#x", uintptr(c))
	}
	for h, m := range s.modules {
		if m.ctx == c {
			delete(s.modules, h)
			s.reclaimed++
		}
	}
	for fn, f := range s.functions {
		if _, ok := s.modules[f.module]; !ok {
			delete(s.functions, fn)
		}
	}
	for p, b := range s.buffers {
		if b.ctx == c {
			delete(s.buffers, p)
			s.reclaimed++
		}
	}
	delete(s.allocated, c)
	delete(s.contexts, c)
	if s.current == c {
		s.current = 0
	}
	return nil
}

func (s *Sim) CtxSynchronize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpCtxSynchronize); err != nil {
		return err
	}
	if _, ok := s.contexts[s.current]; !ok {
		return cuda.Errorf(cuda.OpCtxSynchronize, cuda.ErrInvalidContext, "no current context")
	}
	return nil
}

// currentDevice returns the DeviceSpec of the current context. Callers hold s.mu.
func (s *Sim) currentDevice(op string) (DeviceSpec, error) {
	c, ok := s.contexts[s.current]
	if !ok {
		return DeviceSpec{}, cuda.Errorf(op, cuda.ErrInvalidContext, "no current context")
	}
	return s.spec(op, c.device)
}

func (s *Sim) ModuleLoadData(image []byte) (cuda.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpModuleLoadData); err != nil {
		return 0, err
	}
	if _, err := s.currentDevice(cuda.OpModuleLoadData); err != nil {
		return 0, err
	}
	img, err := DecodeImage(image)
	if err != nil {
		return 0, cuda.Errorf(cuda.OpModuleLoadData, cuda.ErrInvalidImage, "%v", err)
	}
	h := cuda.Module(s.handle())
	s.modules[h] = &simModule{ctx: s.current, mod: img.Module}
	return h, nil
}

func (s *Sim) ModuleGetFunction(m cuda.Module, name string) (cuda.Function, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpModuleGetFunction); err != nil {
		return 0, err
	}
	mod, ok := s.modules[m]
	if !ok {
		return 0, cuda.Errorf(cuda.OpModuleGetFunction, cuda.ErrInvalidHandle, "module %#x", uintptr(m))
	}
	isKernel := false
	for _, k := range mod.mod.Kernels() {
		if k == name {
			isKernel = true
			break
		}
	}
	if f := mod.mod.Func(name); f == nil || f.IsDeclaration() || !isKernel {
		return 0, cuda.Errorf(cuda.OpModuleGetFunction, cuda.ErrNotFound, "kernel %s", name)
	}
	fn := cuda.Function(s.handle())
	s.functions[fn] = simFunction{module: m, name: name}
	return fn, nil
}

func (s *Sim) ModuleUnload(m cuda.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpModuleUnload); err != nil {
		return err
	}
	if _, ok := s.modules[m]; !ok {
		return cuda.Errorf(cuda.OpModuleUnload, cuda.ErrInvalidHandle, "module %#x", uintptr(m))
	}
	delete(s.modules, m)
	for fn, f := range s.functions {
		if f.module == m {
			delete(s.functions, fn)
		}
	}
	return nil
}

func (s *Sim) MemAlloc(bytes uint64) (cuda.DevicePtr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpMemAlloc); err != nil {
		return 0, err
	}
	spec, err := s.currentDevice(cuda.OpMemAlloc)
	if err != nil {
		return 0, err
	}
	if bytes == 0 || bytes%8 != 0 {
		return 0, cuda.Errorf(cuda.OpMemAlloc, cuda.ErrInvalidValue, "size %d", bytes)
	}
	if s.allocated[s.current]+bytes > spec.TotalMem {
		return 0, cuda.Errorf(cuda.OpMemAlloc, cuda.ErrOutOfMemory, "%d bytes requested", bytes)
	}
	p := s.nextPtr
	s.nextPtr += cuda.DevicePtr((bytes + 255) &^ 255)
	s.buffers[p] = &buffer{ctx: s.current, data: make([]float64, bytes/8)}
	s.allocated[s.current] += bytes
	return p, nil
}

func (s *Sim) MemFree(p cuda.DevicePtr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpMemFree); err != nil {
		return err
	}
	b, ok := s.buffers[p]
	if !ok {
		return cuda.Errorf(cuda.OpMemFree, cuda.ErrInvalidValue, "pointer %#x", uint64(p))
	}
	s.allocated[b.ctx] -= uint64(len(b.data)) * 8
	delete(s.buffers, p)
	return nil
}

func (s *Sim) MemcpyHtoD(dst cuda.DevicePtr, src []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpMemcpyHtoD); err != nil {
		return err
	}
	b, ok := s.buffers[dst]
	if !ok || len(src) > len(b.data) {
		return cuda.Errorf(cuda.OpMemcpyHtoD, cuda.ErrInvalidValue, "copy of %d doubles to %#x", len(src), uint64(dst))
	}
	copy(b.data, src)
	return nil
}

func (s *Sim) MemcpyDtoH(dst []float64, src cuda.DevicePtr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpMemcpyDtoH); err != nil {
		return err
	}
	b, ok := s.buffers[src]
	if !ok || len(dst) > len(b.data) {
		return cuda.Errorf(cuda.OpMemcpyDtoH, cuda.ErrInvalidValue, "copy of %d doubles from %#x", len(dst), uint64(src))
	}
	copy(dst, b.data)
	return nil
}

// LaunchKernel runs fn to completion before returning.
func (s *Sim) LaunchKernel(ctx context.Context, fn cuda.Function, cfg cuda.LaunchConfig, args []cuda.DevicePtr) error {
	l, err := s.prepareLaunch(fn, cfg, args)
	if err != nil {
		return err
	}
	if err := l.run(ctx, s.opts.Workers); err != nil {
		return err
	}
	s.mu.Lock()
	s.launches++
	s.mu.Unlock()
	return nil
}
