package simdev

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"kalmap/internal/cuda"
	"kalmap/internal/ir"
	"kalmap/internal/trace"
	"kalmap/internal/vm"
)

// launch is a validated kernel launch detached from the driver lock.
type launch struct {
	mod  *ir.Module
	name string
	cfg  cuda.LaunchConfig
	bufs [][]float64
}

func (s *Sim) prepareLaunch(fn cuda.Function, cfg cuda.LaunchConfig, args []cuda.DevicePtr) (*launch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(cuda.OpLaunchKernel); err != nil {
		return nil, err
	}
	spec, err := s.currentDevice(cuda.OpLaunchKernel)
	if err != nil {
		return nil, err
	}
	f, ok := s.functions[fn]
	if !ok {
		return nil, cuda.Errorf(cuda.OpLaunchKernel, cuda.ErrInvalidHandle, "function %#x", uintptr(fn))
	}
	mod := s.modules[f.module]
	if mod.ctx != s.current {
		return nil, cuda.Errorf(cuda.OpLaunchKernel, cuda.ErrInvalidContext, "kernel %s belongs to another context", f.name)
	}
	if cfg.GridX == 0 || cfg.BlockX == 0 {
		return nil, cuda.Errorf(cuda.OpLaunchKernel, cuda.ErrInvalidValue, "empty launch %s", cfg)
	}
	if cfg.GridY > 1 || cfg.GridZ > 1 || cfg.BlockY > 1 || cfg.BlockZ > 1 {
		return nil, cuda.Errorf(cuda.OpLaunchKernel, cuda.ErrInvalidValue, "only one-dimensional launches are simulated, got %s", cfg)
	}
	if int(cfg.BlockX) > spec.MaxThreadsPerBlock {
		return nil, cuda.Errorf(cuda.OpLaunchKernel, cuda.ErrInvalidValue, "block of %d threads exceeds device limit %d", cfg.BlockX, spec.MaxThreadsPerBlock)
	}

	kernel := mod.mod.Func(f.name)
	if len(kernel.Params) != len(args) {
		return nil, cuda.Errorf(cuda.OpLaunchKernel, cuda.ErrInvalidValue, "kernel %s takes %d parameters, got %d", f.name, len(kernel.Params), len(args))
	}
	l := &launch{mod: mod.mod, name: f.name, cfg: cfg, bufs: make([][]float64, len(args))}
	for i, p := range kernel.Params {
		if p.Type != ir.TypePtrF64 {
			return nil, cuda.Errorf(cuda.OpLaunchKernel, cuda.ErrInvalidValue, "parameter %d of %s is %s", i, f.name, p.Type)
		}
		b, ok := s.buffers[args[i]]
		if !ok || b.ctx != s.current {
			return nil, cuda.Errorf(cuda.OpLaunchKernel, cuda.ErrInvalidValue, "parameter %d: pointer %#x is not a live allocation", i, uint64(args[i]))
		}
		l.bufs[i] = b.data
	}
	return l, nil
}

// threadState is the special-register file of the running thread.
type threadState struct {
	tid, ntid, ctaid int32
}

func (l *launch) run(ctx context.Context, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for block := range l.cfg.GridX {
		g.Go(func() error {
			return l.runBlock(gctx, int32(block))
		})
	}
	return g.Wait()
}

// runBlock executes every thread of one block on a private interpreter
// whose heap maps the launch buffers.
func (l *launch) runBlock(ctx context.Context, block int32) error {
	_, span := trace.StartSpan(ctx, trace.ScopeKernel, "block")
	defer span.End(fmt.Sprintf("ctaid=%d threads=%d", block, l.cfg.BlockX))

	machine := vm.New(l.mod, vm.Options{Stdout: io.Discard})
	st := &threadState{ntid: int32(l.cfg.BlockX), ctaid: block}
	machine.Register(ir.IntrinsicTidX, func(context.Context, *vm.VM, []vm.Value) (vm.Value, *vm.VMError) {
		return vm.Int(st.tid), nil
	})
	machine.Register(ir.IntrinsicNtidX, func(context.Context, *vm.VM, []vm.Value) (vm.Value, *vm.VMError) {
		return vm.Int(st.ntid), nil
	})
	machine.Register(ir.IntrinsicCtaidX, func(context.Context, *vm.VM, []vm.Value) (vm.Value, *vm.VMError) {
		return vm.Int(st.ctaid), nil
	})

	args := make([]vm.Value, len(l.bufs))
	for i, b := range l.bufs {
		args[i] = vm.Ptr(machine.Heap.MapFloats(b))
	}
	for st.tid = 0; st.tid < st.ntid; st.tid++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, vmErr := machine.Run(ctx, l.name, args...); vmErr != nil {
			return cuda.Errorf(cuda.OpLaunchKernel, cuda.ErrLaunchFailed,
				"block %d thread %d: %s", block, st.tid, vmErr.Error())
		}
	}
	return nil
}
