// Package engine runs one compiled kernel on a device: select, create a
// context, load, copy in, launch, copy out, tear down.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fortio.org/safecast"

	"kalmap/internal/cuda"
	"kalmap/internal/devcc"
	"kalmap/internal/trace"
)

// DefaultMaxBlock is the thread-block ceiling used when Options leave it unset.
const DefaultMaxBlock = 128

type Options struct {
	MinMajor, MinMinor int   // capability floor, default 2.0
	MaxBlock           int32 // threads per block, default DefaultMaxBlock
}

// Request is one kernel invocation over N elements.
type Request struct {
	Code   *devcc.Code
	N      int32
	Inputs [][]float64 // one per kernel input, each at least N long
	Output []float64   // receives N results
	Legacy bool        // single block of N threads
}

// Engine owns the driver. Driver initialization happens on first use and
// is remembered, failure included.
type Engine struct {
	drv  cuda.Driver
	opts Options

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	history []State
}

func New(drv cuda.Driver, opts Options) *Engine {
	if opts.MinMajor == 0 && opts.MinMinor == 0 {
		opts.MinMajor = 2
	}
	if opts.MaxBlock <= 0 {
		opts.MaxBlock = DefaultMaxBlock
	}
	return &Engine{drv: drv, opts: opts}
}

func (e *Engine) Driver() cuda.Driver { return e.drv }

func (e *Engine) MaxBlock() int32 { return e.opts.MaxBlock }

// History returns the states the last Launch walked through.
func (e *Engine) History() []State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]State(nil), e.history...)
}

// LaunchConfigFor returns the launch shape for n elements:
// block = min(n, maxBlock), grid = ceil(n / block). Legacy launches use a
// single block of n threads.
func LaunchConfigFor(n, maxBlock int32, legacy bool) (cuda.LaunchConfig, error) {
	if n <= 0 {
		return cuda.LaunchConfig{}, fmt.Errorf("launch over %d elements", n)
	}
	block, grid := n, int32(1)
	if !legacy {
		block = min(n, maxBlock)
		grid = (n + block - 1) / block
	}
	bx, err := safecast.Conv[uint32](block)
	if err != nil {
		return cuda.LaunchConfig{}, err
	}
	gx, err := safecast.Conv[uint32](grid)
	if err != nil {
		return cuda.LaunchConfig{}, err
	}
	return cuda.LaunchConfig{GridX: gx, GridY: 1, GridZ: 1, BlockX: bx, BlockY: 1, BlockZ: 1}, nil
}

func (e *Engine) init() error {
	e.initOnce.Do(func() {
		e.initErr = e.drv.Init()
	})
	return e.initErr
}

// session is the device state of one Launch.
type session struct {
	e      *Engine
	state  State
	ctx    cuda.Context
	mod    cuda.Module
	bufs   []cuda.DevicePtr
	hasCtx bool
	hasMod bool
}

func (s *session) enter(st State) {
	s.state = st
	s.e.history = append(s.e.history, st)
}

// Launch runs req. Every error it returns is a *FatalError; device
// resources it created are released whatever happens.
func (e *Engine) Launch(ctx context.Context, req Request) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = e.history[:0]

	ctx, span := trace.StartSpan(ctx, trace.ScopeDevice, "device_session")
	s := &session{e: e}
	s.enter(StateUninitialized)
	defer func() {
		if terr := s.teardown(); terr != nil && err == nil {
			err = fatal(s.state, terr)
		}
		s.enter(StateTornDown)
		span.End(s.state.String())
	}()

	if err := e.init(); err != nil {
		return fatal(s.state, err)
	}
	dev, err := e.selectDevice(ctx)
	if err != nil {
		return fatal(s.state, err)
	}
	s.enter(StateDeviceSelected)

	if s.ctx, err = e.drv.CtxCreate(dev); err != nil {
		return fatal(s.state, err)
	}
	s.hasCtx = true
	s.enter(StateContextActive)

	if req.Code == nil {
		return fatal(s.state, errors.New("no device code"))
	}
	if s.mod, err = e.drv.ModuleLoadData(req.Code.Image); err != nil {
		return fatal(s.state, err)
	}
	s.hasMod = true
	fn, err := e.drv.ModuleGetFunction(s.mod, req.Code.Kernel)
	if err != nil {
		return fatal(s.state, err)
	}
	s.enter(StateModuleLoaded)

	n := int(req.N)
	if len(req.Output) < n {
		return fatal(s.state, fmt.Errorf("output holds %d elements, need %d", len(req.Output), n))
	}
	bytes := uint64(n) * 8
	args := make([]cuda.DevicePtr, 0, len(req.Inputs)+1)
	for i, in := range req.Inputs {
		if len(in) < n {
			return fatal(s.state, fmt.Errorf("input %d holds %d elements, need %d", i, len(in), n))
		}
		p, err := e.drv.MemAlloc(bytes)
		if err != nil {
			return fatal(s.state, err)
		}
		s.bufs = append(s.bufs, p)
		if err := e.drv.MemcpyHtoD(p, in[:n]); err != nil {
			return fatal(s.state, err)
		}
		args = append(args, p)
	}
	out, err := e.drv.MemAlloc(bytes)
	if err != nil {
		return fatal(s.state, err)
	}
	s.bufs = append(s.bufs, out)
	args = append(args, out)
	s.enter(StateBuffersAllocated)

	cfg, err := LaunchConfigFor(req.N, e.opts.MaxBlock, req.Legacy)
	if err != nil {
		return fatal(s.state, err)
	}
	trace.PointCtx(ctx, trace.ScopeDevice, "launch", req.Code.Kernel+" "+cfg.String())
	if err := e.drv.LaunchKernel(ctx, fn, cfg, args); err != nil {
		return fatal(s.state, err)
	}
	if err := e.drv.CtxSynchronize(); err != nil {
		return fatal(s.state, err)
	}
	s.enter(StateLaunched)

	if err := e.drv.MemcpyDtoH(req.Output[:n], out); err != nil {
		return fatal(s.state, err)
	}
	s.enter(StateResultCopied)
	return nil
}

// teardown releases what the session holds, in reverse order of
// acquisition.
func (s *session) teardown() error {
	var errs []error
	drv := s.e.drv
	for i := len(s.bufs) - 1; i >= 0; i-- {
		if err := drv.MemFree(s.bufs[i]); err != nil {
			errs = append(errs, err)
		}
	}
	s.bufs = nil
	if s.hasMod {
		if err := drv.ModuleUnload(s.mod); err != nil {
			errs = append(errs, err)
		}
		s.hasMod = false
	}
	if s.hasCtx {
		if err := drv.CtxDestroy(s.ctx); err != nil {
			errs = append(errs, err)
		}
		s.hasCtx = false
	}
	return errors.Join(errs...)
}

// selectDevice returns the first device meeting the capability floor.
func (e *Engine) selectDevice(ctx context.Context) (cuda.Device, error) {
	count, err := e.drv.DeviceCount()
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: the driver reports no devices", ErrNoDevice)
	}
	for i := 0; i < count; i++ {
		dev, err := e.drv.Device(i)
		if err != nil {
			return 0, err
		}
		major, minor, err := e.drv.ComputeCapability(dev)
		if err != nil {
			return 0, err
		}
		if major < e.opts.MinMajor || (major == e.opts.MinMajor && minor < e.opts.MinMinor) {
			continue
		}
		name, err := e.drv.DeviceName(dev)
		if err != nil {
			return 0, err
		}
		trace.PointCtx(ctx, trace.ScopeDevice, "select_device",
			fmt.Sprintf("Using CUDA Device [%d]: %s (compute %d.%d)", i, name, major, minor))
		return dev, nil
	}
	return 0, fmt.Errorf("%w: none of %d device(s) has compute capability %d.%d", ErrNoDevice, count, e.opts.MinMajor, e.opts.MinMinor)
}
