package offload_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"kalmap/internal/cuda"
	"kalmap/internal/cuda/simdev"
	"kalmap/internal/devcc"
	"kalmap/internal/diag"
	"kalmap/internal/engine"
	"kalmap/internal/observ"
	"kalmap/internal/offload"
	"kalmap/internal/testkit"
	"kalmap/internal/vm"
)

const prelude = "extern iota(vector v); extern capture(vector v);"

type harness struct {
	sim     *simdev.Sim
	disp    *offload.Dispatcher
	bag     *diag.Bag
	got     []float64
	reports []observ.Report
}

func newHarness(t *testing.T, mutate func(*offload.Options)) *harness {
	t.Helper()
	h := &harness{sim: simdev.New(simdev.Options{Workers: 2}), bag: diag.NewBag(16)}
	opts := offload.Options{
		Compiler: devcc.Sim{},
		Engine:   engine.New(h.sim, engine.Options{}),
		Reporter: diag.BagReporter{Bag: h.bag},
		Timings:  func(r observ.Report) { h.reports = append(h.reports, r) },
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.disp = offload.NewDispatcher(opts)
	return h
}

// run evaluates src with vector_map bound to the dispatcher. iota(v) fills
// v with 1..n; capture(v) records v and returns its length.
func (h *harness) run(t *testing.T, src string) *testkit.Evaluation {
	t.Helper()
	ev := testkit.Eval(prelude+src, testkit.EvalOptions{Setup: func(m *vm.VM) {
		h.disp.Bind(m)
		m.Register("iota", func(_ context.Context, m *vm.VM, args []vm.Value) (vm.Value, *vm.VMError) {
			data, err := m.Heap.VectorData(args[0].Vec)
			for i := range data {
				data[i] = float64(i + 1)
			}
			return vm.Float(0), err
		})
		m.Register("capture", func(_ context.Context, m *vm.VM, args []vm.Value) (vm.Value, *vm.VMError) {
			data, err := m.Heap.VectorData(args[0].Vec)
			h.got = append([]float64(nil), data...)
			return vm.Float(float64(len(data))), err
		})
	}})
	if ev.Diags.Len() != 0 {
		t.Fatalf("diagnostics: %v", ev.Diags.Items())
	}
	return ev
}

func (h *harness) assertClean(t *testing.T) {
	t.Helper()
	if h.sim.LiveBuffers() != 0 || h.sim.LiveContexts() != 0 || h.sim.LiveModules() != 0 {
		t.Fatalf("device leaked: buffers=%d contexts=%d modules=%d", h.sim.LiveBuffers(), h.sim.LiveContexts(), h.sim.LiveModules())
	}
}

func TestMapSquare(t *testing.T) {
	h := newHarness(t, nil)
	ev := h.run(t, "def square(x) x*x; var vector a[4] in iota(a) + capture(map(square, a))")
	v, vmErr := ev.Last()
	if vmErr != nil {
		t.Fatalf("run: %s", vmErr.FormatTrace())
	}
	if v.F != 4 || !slices.Equal(h.got, []float64{1, 4, 9, 16}) {
		t.Fatalf("map result %v (value %v)", h.got, v.F)
	}
	if h.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", h.bag.Items())
	}
	if ev.Module.Func("square_kernel") != nil || ev.Module.Func("llvm.nvvm.read.ptx.sreg.tid.x") != nil {
		t.Fatalf("map leaked device code into the live module")
	}
	if h.disp.Calls() != 1 || h.sim.Launches() != 1 {
		t.Fatalf("calls=%d launches=%d", h.disp.Calls(), h.sim.Launches())
	}
	h.assertClean(t)
}

func TestMapPartialBlock(t *testing.T) {
	h := newHarness(t, nil)
	h.run(t, "def square(x) x*x; var vector a[130] in iota(a) + capture(map(square, a))")
	if len(h.got) != 130 {
		t.Fatalf("got %d elements", len(h.got))
	}
	for _, i := range []int{0, 127, 128, 129} {
		if want := float64((i + 1) * (i + 1)); h.got[i] != want {
			t.Errorf("result[%d] = %v, want %v", i, h.got[i], want)
		}
	}
	h.assertClean(t)
}

func TestMapBinaryWithHelper(t *testing.T) {
	h := newHarness(t, nil)
	h.run(t, "def twice(x) x*2; def f(a b) twice(a) - b; var vector a[4], vector b[4] in iota(a) + iota(b) + capture(map(f, a, b))")
	if !slices.Equal(h.got, []float64{1, 2, 3, 4}) {
		t.Fatalf("got %v", h.got)
	}
}

func TestMapLegacyABI(t *testing.T) {
	h := newHarness(t, func(o *offload.Options) { o.ABI = offload.ABILegacy })
	h.run(t, "def inc(x) x+1; var vector a[200] in iota(a) + capture(map(inc, a))")
	if len(h.got) != 200 || h.got[199] != 201 {
		t.Fatalf("legacy request over a grid-sized input: %d elements", len(h.got))
	}
}

func TestMapEmptyVector(t *testing.T) {
	h := newHarness(t, nil)
	ev := h.run(t, "def sq(x) x*x; var vector a[0] in capture(map(sq, a))")
	if v, _ := ev.Last(); v.F != 0 || h.sim.Launches() != 0 {
		t.Fatalf("empty map launched %d kernels", h.sim.Launches())
	}
}

func TestMapAbandonedCalls(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*offload.Options)
		src    string
		code   diag.Code
	}{
		{"length mismatch", nil,
			"def add(a b) a+b; var vector a[4], vector b[3] in capture(map(add, a, b))", diag.OffLengthMismatch},
		{"host calls on device", nil,
			"extern putchard(c); def noisy(x) putchard(x); var vector a[2] in capture(map(noisy, a))", diag.OffCompile},
		{"result too large", func(o *offload.Options) { o.MaxVectorLen = 2 },
			"def sq(x) x*x; var vector a[4] in capture(map(sq, a))", diag.OffHostAlloc},
		{"toolchain missing", func(o *offload.Options) { o.Compiler = &devcc.NVVM{} },
			"def sq(x) x*x; var vector a[4] in capture(map(sq, a))", diag.OffCompile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.mutate)
			h.got = []float64{-1}
			ev := h.run(t, tt.src)
			if _, vmErr := ev.Last(); vmErr != nil {
				t.Fatalf("abandoned map must not fault: %s", vmErr.FormatTrace())
			}
			if len(h.got) != 0 {
				t.Fatalf("got %v, want empty result", h.got)
			}
			if h.bag.Len() != 1 || h.bag.Items()[0].Code != tt.code {
				t.Fatalf("diagnostics = %v, want %s", h.bag.Items(), tt.code.ID())
			}
			h.assertClean(t)
		})
	}
}

func TestMapDirectErrors(t *testing.T) {
	live := compile(t, "extern ext(x); def sq(x) x*x;")
	h := newHarness(t, nil)
	tests := []struct {
		name   string
		callee string
		args   [][]float64
		code   diag.Code
	}{
		{"unknown", "nope", [][]float64{{1}}, diag.OffUnknownCallee},
		{"declaration", "ext", [][]float64{{1}}, diag.OffUnknownCallee},
		{"arity", "sq", [][]float64{{1}, {2}}, diag.OffArity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.disp.Map(context.Background(), live, tt.callee, tt.args)
			var me *offload.MapError
			if !errors.As(err, &me) || me.Code != tt.code {
				t.Fatalf("err = %v, want %s", err, tt.code.ID())
			}
		})
	}
}

func TestMapDeviceFailure(t *testing.T) {
	src := "def sq(x) x*x; var vector a[4] in capture(map(sq, a))"

	t.Run("fatal", func(t *testing.T) {
		h := newHarness(t, func(o *offload.Options) { o.FatalErrors = true })
		h.sim.FailNext(cuda.OpLaunchKernel, cuda.ErrLaunchFailed)
		ev := h.run(t, src)
		_, vmErr := ev.Last()
		var fe *engine.FatalError
		if vmErr == nil || !errors.As(vmErr, &fe) {
			t.Fatalf("err = %v, want a fatal device error", vmErr)
		}
		if fe.State != engine.StateBuffersAllocated {
			t.Fatalf("failed after %s", fe.State)
		}
		h.assertClean(t)
	})

	t.Run("downgraded", func(t *testing.T) {
		h := newHarness(t, nil)
		h.sim.FailNext(cuda.OpLaunchKernel, cuda.ErrLaunchFailed)
		ev := h.run(t, src)
		if _, vmErr := ev.Last(); vmErr != nil {
			t.Fatalf("downgraded failure faulted: %s", vmErr.FormatTrace())
		}
		if h.bag.Len() != 1 || h.bag.Items()[0].Code != diag.OffDevice || len(h.got) != 0 {
			t.Fatalf("diagnostics = %v, result %v", h.bag.Items(), h.got)
		}
		h.assertClean(t)
	})
}

func TestMapTimings(t *testing.T) {
	h := newHarness(t, nil)
	h.run(t, "def sq(x) x*x; var vector a[8] in capture(map(sq, a))")
	if len(h.reports) != 1 {
		t.Fatalf("reports = %d", len(h.reports))
	}
	r := h.reports[0]
	var names []string
	for _, p := range r.Phases {
		names = append(names, p.Name)
	}
	want := []string{observ.PhaseResolve, observ.PhasePrune, observ.PhaseSynthesize, observ.PhaseVerify, observ.PhaseCompile, observ.PhaseLaunch}
	if r.Label != "sq" || !slices.Equal(names, want) {
		t.Fatalf("report = %+v", r)
	}
}

func TestMapTimingsOnResolveFailure(t *testing.T) {
	live := compile(t, "def sq(x) x*x;")
	h := newHarness(t, nil)
	if _, err := h.disp.Map(context.Background(), live, "nope", [][]float64{{1}}); err == nil {
		t.Fatal("unknown callee accepted")
	}
	if len(h.reports) != 1 {
		t.Fatalf("reports = %d", len(h.reports))
	}
	r := h.reports[0]
	if r.Label != "nope" || len(r.Phases) != 1 || r.Phases[0].Name != observ.PhaseResolve {
		t.Fatalf("report = %+v", r)
	}
}
