package engine_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"kalmap/internal/cuda"
	"kalmap/internal/cuda/simdev"
	"kalmap/internal/devcc"
	"kalmap/internal/engine"
	"kalmap/internal/offload"
	"kalmap/internal/testkit"
)

func TestLaunchConfigFor(t *testing.T) {
	tests := []struct {
		n, maxBlock int32
		legacy      bool
		grid, block uint32
	}{
		{4, 128, false, 1, 4},
		{128, 128, false, 1, 128},
		{130, 128, false, 2, 128},
		{1000, 256, false, 4, 256},
		{100, 128, true, 1, 100},
	}
	for _, tt := range tests {
		cfg, err := engine.LaunchConfigFor(tt.n, tt.maxBlock, tt.legacy)
		if err != nil {
			t.Fatalf("n=%d: %v", tt.n, err)
		}
		if cfg.GridX != tt.grid || cfg.BlockX != tt.block || cfg.GridY != 1 || cfg.BlockZ != 1 {
			t.Errorf("n=%d: got %s, want grid %d block %d", tt.n, cfg, tt.grid, tt.block)
		}
		if cfg.Threads() < uint64(tt.n) {
			t.Errorf("n=%d: %d threads do not cover the input", tt.n, cfg.Threads())
		}
	}
	if _, err := engine.LaunchConfigFor(0, 128, false); err == nil {
		t.Errorf("empty launch accepted")
	}
}

func compileSquare(t *testing.T, n int32, abi offload.ABI) *devcc.Code {
	t.Helper()
	m, k, err := testkit.KernelModule("def square(x) x*x;", "square", n, abi, engine.DefaultMaxBlock)
	if err != nil {
		t.Fatal(err)
	}
	code, err := devcc.Sim{}.Compile(context.Background(), m, k.Name)
	if err != nil {
		t.Fatal(err)
	}
	return code
}

func assertClean(t *testing.T, sim *simdev.Sim) {
	t.Helper()
	if sim.LiveBuffers() != 0 || sim.LiveModules() != 0 || sim.LiveContexts() != 0 || sim.Reclaimed() != 0 {
		t.Fatalf("session leaked: buffers=%d modules=%d contexts=%d reclaimed=%d",
			sim.LiveBuffers(), sim.LiveModules(), sim.LiveContexts(), sim.Reclaimed())
	}
}

func TestLaunchSquare(t *testing.T) {
	sim := simdev.New(simdev.Options{})
	e := engine.New(sim, engine.Options{})
	out := make([]float64, 4)
	err := e.Launch(context.Background(), engine.Request{
		Code:   compileSquare(t, 4, offload.ABIGrid),
		N:      4,
		Inputs: [][]float64{{1, 2, 3, 4}},
		Output: out,
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if !slices.Equal(out, []float64{1, 4, 9, 16}) {
		t.Fatalf("out = %v", out)
	}
	want := []engine.State{
		engine.StateUninitialized, engine.StateDeviceSelected, engine.StateContextActive,
		engine.StateModuleLoaded, engine.StateBuffersAllocated, engine.StateLaunched,
		engine.StateResultCopied, engine.StateTornDown,
	}
	if got := e.History(); !slices.Equal(got, want) {
		t.Fatalf("history = %v", got)
	}
	assertClean(t, sim)
}

func TestLaunchPartialLastBlock(t *testing.T) {
	const n = 130
	sim := simdev.New(simdev.Options{})
	e := engine.New(sim, engine.Options{})
	in := make([]float64, n)
	for i := range in {
		in[i] = float64(i + 1)
	}
	out := make([]float64, n)
	if err := e.Launch(context.Background(), engine.Request{Code: compileSquare(t, n, offload.ABIGrid), N: n, Inputs: [][]float64{in}, Output: out}); err != nil {
		t.Fatalf("launch: %v", err)
	}
	for _, i := range []int{0, 127, 128, 129} {
		if want := in[i] * in[i]; out[i] != want {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want)
		}
	}
	assertClean(t, sim)
}

func TestLaunchFailuresTearDown(t *testing.T) {
	ops := []string{
		cuda.OpCtxCreate, cuda.OpModuleLoadData, cuda.OpModuleGetFunction, cuda.OpMemAlloc,
		cuda.OpMemcpyHtoD, cuda.OpLaunchKernel, cuda.OpCtxSynchronize, cuda.OpMemcpyDtoH,
	}
	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			sim := simdev.New(simdev.Options{})
			e := engine.New(sim, engine.Options{})
			sim.FailNext(op, cuda.ErrUnknown)
			err := e.Launch(context.Background(), engine.Request{
				Code: compileSquare(t, 4, offload.ABIGrid), N: 4,
				Inputs: [][]float64{{1, 2, 3, 4}}, Output: make([]float64, 4),
			})
			var fe *engine.FatalError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want FatalError", err)
			}
			if r, _ := cuda.ResultOf(err); r != cuda.ErrUnknown {
				t.Fatalf("result = %v", r)
			}
			if h := e.History(); h[len(h)-1] != engine.StateTornDown {
				t.Fatalf("history = %v", h)
			}
			assertClean(t, sim)
		})
	}
}

func TestLaunchBadImage(t *testing.T) {
	sim := simdev.New(simdev.Options{})
	e := engine.New(sim, engine.Options{})
	err := e.Launch(context.Background(), engine.Request{
		Code: &devcc.Code{Format: devcc.FormatSim, Image: []byte("not an image"), Kernel: "k"},
		N:    1, Inputs: [][]float64{{1}}, Output: make([]float64, 1),
	})
	if r, _ := cuda.ResultOf(err); r != cuda.ErrInvalidImage {
		t.Fatalf("err = %v", err)
	}
	assertClean(t, sim)
}

func TestDeviceCapabilityFloor(t *testing.T) {
	sim := simdev.New(simdev.Options{Devices: []simdev.DeviceSpec{
		{Name: "tesla", Major: 1, Minor: 3, TotalMem: 1 << 20, MaxThreadsPerBlock: 512},
	}})
	e := engine.New(sim, engine.Options{})
	err := e.Launch(context.Background(), engine.Request{
		Code: compileSquare(t, 1, offload.ABIGrid), N: 1, Inputs: [][]float64{{1}}, Output: make([]float64, 1),
	})
	if !errors.Is(err, engine.ErrNoDevice) {
		t.Fatalf("err = %v, want ErrNoDevice", err)
	}
	assertClean(t, sim)

	relaxed := engine.New(sim, engine.Options{MinMajor: 1, MinMinor: 0})
	if err := relaxed.Launch(context.Background(), engine.Request{
		Code: compileSquare(t, 1, offload.ABIGrid), N: 1, Inputs: [][]float64{{3}}, Output: make([]float64, 1),
	}); err != nil {
		t.Fatalf("relaxed floor: %v", err)
	}
}

func TestInitFailureIsSticky(t *testing.T) {
	sim := simdev.New(simdev.Options{})
	sim.FailNext(cuda.OpInit, cuda.ErrNoDevice)
	e := engine.New(sim, engine.Options{})
	req := engine.Request{Code: compileSquare(t, 1, offload.ABIGrid), N: 1, Inputs: [][]float64{{1}}, Output: make([]float64, 1)}
	for i := 0; i < 2; i++ {
		if r, _ := cuda.ResultOf(e.Launch(context.Background(), req)); r != cuda.ErrNoDevice {
			t.Fatalf("launch %d: result %v", i, r)
		}
	}
}

func TestNewDriver(t *testing.T) {
	for _, kind := range []string{"", "sim"} {
		d, err := engine.NewDriver(engine.DriverOptions{Kind: kind})
		if err != nil || d.Name() != "sim" {
			t.Fatalf("kind %q: %v %v", kind, d, err)
		}
	}
	d, err := engine.NewDriver(engine.DriverOptions{Kind: "auto", Library: "/nonexistent/libcuda.so"})
	if err != nil || d.Name() != "sim" {
		t.Fatalf("auto fallback: %v %v", d, err)
	}
	if _, err := engine.NewDriver(engine.DriverOptions{Kind: "cuda", Library: "/nonexistent/libcuda.so"}); err == nil {
		t.Fatalf("cuda with missing library succeeded")
	}
	if _, err := engine.NewDriver(engine.DriverOptions{Kind: "opencl"}); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}

func TestDevicesReportsEligibility(t *testing.T) {
	sim := simdev.New(simdev.Options{Devices: []simdev.DeviceSpec{
		{Name: "old", Major: 1, Minor: 3, TotalMem: 1 << 20, MaxThreadsPerBlock: 512},
		{Name: "new", Major: 3, Minor: 5, TotalMem: 1 << 30, MaxThreadsPerBlock: 1024},
	}})
	eng := engine.New(sim, engine.Options{MinMajor: 2})
	got, err := eng.Devices()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d devices", len(got))
	}
	if got[0].Name != "old" || got[0].Eligible || got[0].Compute() != "1.3" {
		t.Errorf("device 0 = %+v", got[0])
	}
	if got[1].Name != "new" || !got[1].Eligible || got[1].TotalMem != 1<<30 || got[1].Ordinal != 1 {
		t.Errorf("device 1 = %+v", got[1])
	}
}

func TestDevicesInitFailure(t *testing.T) {
	sim := simdev.New(simdev.Options{})
	sim.FailNext(cuda.OpInit, cuda.ErrNoDevice)
	if _, err := engine.New(sim, engine.Options{}).Devices(); err == nil {
		t.Fatalf("init failure not reported")
	}
}
