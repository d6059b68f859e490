package driver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"kalmap/internal/ast"
	"kalmap/internal/config"
	"kalmap/internal/cuda"
	"kalmap/internal/cuda/simdev"
	"kalmap/internal/diag"
	"kalmap/internal/engine"
)

type run struct {
	res    Result
	stdout string
	stderr string
	sim    *simdev.Sim
}

func runSession(t *testing.T, src string, mutate func(*Options)) run {
	t.Helper()
	sim := simdev.New(simdev.Options{Workers: 2})
	var stdout, stderr bytes.Buffer
	opts := Options{Config: config.Default(), Driver: sim, Stdout: &stdout, Stderr: &stderr}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewSession(opts)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	res, err := s.Run(context.Background(), "test.k", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return run{res: res, stdout: stdout.String(), stderr: stderr.String(), sim: sim}
}

func TestSessionEvaluates(t *testing.T) {
	r := runSession(t, "def sq(x) x*x; sq(4); 1+2;", nil)
	if !slices.Equal(r.res.Values, []float64{16, 3}) {
		t.Fatalf("values = %v", r.res.Values)
	}
	if !strings.Contains(r.stderr, "Evaluated to 16.000000\n") || !strings.Contains(r.stderr, "Evaluated to 3.000000\n") {
		t.Fatalf("stderr:\n%s", r.stderr)
	}
	if r.res.Units != 3 || r.res.Errors != 0 {
		t.Fatalf("result = %+v", r.res)
	}
	if strings.Contains(r.stderr, Prompt) {
		t.Fatalf("prompt printed in batch mode")
	}
}

func TestSessionPrompt(t *testing.T) {
	r := runSession(t, "1;", func(o *Options) { o.Prompt = true })
	// one before the expression, one before ';', one before EOF
	if got := strings.Count(r.stderr, Prompt); got != 3 {
		t.Fatalf("prompts = %d:\n%s", got, r.stderr)
	}
}

func TestSessionRecoversFromErrors(t *testing.T) {
	r := runSession(t, "def f(x) y; def g(x) x+1; (1; g(1); unknown(2); g(2);", nil)
	if !slices.Equal(r.res.Values, []float64{2, 3}) {
		t.Fatalf("values = %v\n%s", r.res.Values, r.stderr)
	}
	if r.res.Errors != 3 {
		t.Fatalf("errors = %d\n%s", r.res.Errors, r.stderr)
	}
	for _, code := range []string{"SEM3001", "SYN2003", "SEM3002"} {
		if !strings.Contains(r.stderr, code) {
			t.Fatalf("missing %s in:\n%s", code, r.stderr)
		}
	}
}

// A ')' in prefix position is a unary operator application, so it is
// a codegen error and the operand after it is consumed with it.
func TestSessionCloseParenIsUnaryOperator(t *testing.T) {
	r := runSession(t, "def g(x) x+1; ) g(1); g(2);", nil)
	if !slices.Equal(r.res.Values, []float64{3}) {
		t.Fatalf("values = %v\n%s", r.res.Values, r.stderr)
	}
	if r.res.Errors != 1 || !strings.Contains(r.stderr, "SEM3007") {
		t.Fatalf("errors = %d\n%s", r.res.Errors, r.stderr)
	}
}

func TestSessionProgramOutput(t *testing.T) {
	r := runSession(t, "extern putchard(c); extern printd(x); putchard(72) + putchard(10); printd(2.5);", nil)
	if r.stdout != "H\n2.500000\n" {
		t.Fatalf("stdout = %q", r.stdout)
	}
}

func TestSessionMapOffload(t *testing.T) {
	src := "extern printVector(vector v); def inc(x) x+1; var vector v[3] in printVector(map(inc, v));"
	r := runSession(t, src, nil)
	if r.stdout != "1.00 1.00 1.00 " {
		t.Fatalf("stdout = %q\n%s", r.stdout, r.stderr)
	}
	if r.sim.Launches() != 1 || r.sim.LiveBuffers() != 0 || r.sim.LiveContexts() != 0 {
		t.Fatalf("launches=%d buffers=%d contexts=%d", r.sim.Launches(), r.sim.LiveBuffers(), r.sim.LiveContexts())
	}
}

func TestSessionTimings(t *testing.T) {
	src := "def inc(x) x+1; var vector v[2] in map(inc, v);"
	r := runSession(t, src, func(o *Options) { o.Timings = true })
	for _, phase := range []string{"timings (map inc):", "resolve", "compile", "launch", "total"} {
		if !strings.Contains(r.stderr, phase) {
			t.Fatalf("missing %q in:\n%s", phase, r.stderr)
		}
	}
}

func TestSessionDeviceFailureIsFatal(t *testing.T) {
	sim := simdev.New(simdev.Options{})
	sim.FailNext(cuda.OpLaunchKernel, cuda.ErrLaunchFailed)
	src := "def inc(x) x+1; var vector v[2] in map(inc, v); 42;"
	r := runSession(t, src, func(o *Options) { o.Driver = sim })
	if r.res.Fatal == nil {
		t.Fatalf("expected fatal error, got %+v\n%s", r.res, r.stderr)
	}
	if r.res.Fatal.State != engine.StateBuffersAllocated {
		t.Fatalf("failed after %s, want %s", r.res.Fatal.State, engine.StateBuffersAllocated)
	}
	if len(r.res.Values) != 0 {
		t.Fatalf("session continued after fatal error: %v", r.res.Values)
	}
	if !strings.Contains(r.stderr, "OFF4007") {
		t.Fatalf("device failure not reported:\n%s", r.stderr)
	}
	if sim.LiveBuffers() != 0 || sim.LiveContexts() != 0 || sim.LiveModules() != 0 {
		t.Fatalf("device leaked after failure")
	}
}

func TestSessionDeviceFailureDowngraded(t *testing.T) {
	sim := simdev.New(simdev.Options{})
	sim.FailNext(cuda.OpLaunchKernel, cuda.ErrLaunchFailed)
	src := "def inc(x) x+1; var vector v[2] in map(inc, v); 42;"
	r := runSession(t, src, func(o *Options) {
		o.Driver = sim
		o.Config.Device.FatalErrors = false
	})
	if r.res.Fatal != nil {
		t.Fatalf("unexpected fatal error: %v", r.res.Fatal)
	}
	if !slices.Equal(r.res.Values, []float64{0, 42}) {
		t.Fatalf("values = %v\n%s", r.res.Values, r.stderr)
	}
}

func TestSessionDumps(t *testing.T) {
	ll := filepath.Join(t.TempDir(), "host.ll")
	r := runSession(t, "extern putchard(c); def two() 2; two();", func(o *Options) {
		o.DumpIR = true
		o.DumpModule = true
		o.EmitLL = ll
	})
	for _, want := range []string{"Read extern:", "Read function definition:", "Read top-level expression:"} {
		if !strings.Contains(r.stderr, want) {
			t.Fatalf("missing %q in:\n%s", want, r.stderr)
		}
	}
	data, err := os.ReadFile(ll)
	if err != nil {
		t.Fatalf("read %s: %v", ll, err)
	}
	text := string(data)
	if !strings.Contains(text, "define double @two()") || !strings.Contains(text, "declare double @putchard(double") {
		t.Fatalf("unexpected module:\n%s", text)
	}
	if strings.Contains(text, "__anon_expr") {
		t.Fatalf("anonymous expression left in the module:\n%s", text)
	}
}

func TestSessionRuntimeFault(t *testing.T) {
	r := runSession(t, "def loop(x) loop(x+1); loop(0); 7;", func(o *Options) {
		o.Config.Runtime.MaxDepth = 64
	})
	if r.res.RunErrors != 1 || !strings.Contains(r.stderr, "RUN5001") {
		t.Fatalf("result %+v\n%s", r.res, r.stderr)
	}
	if !slices.Equal(r.res.Values, []float64{7}) {
		t.Fatalf("values = %v", r.res.Values)
	}
}

func TestCompilerOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Toolchain.NVVMCC = "/opt/nvvmcc"
	if got := CompilerOptions(cfg, simdev.New(simdev.Options{})).Backend; got != "sim" {
		t.Fatalf("auto on the simulator picked %q", got)
	}
	cfg.Toolchain.Compiler = "nvvm"
	if got := CompilerOptions(cfg, simdev.New(simdev.Options{})).Backend; got != "nvvm" {
		t.Fatalf("explicit backend overridden: %q", got)
	}
}

func TestUnitTokens(t *testing.T) {
	u, err := LoadReader("t.k", strings.NewReader("def f(x) 1.2.3"), 8)
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}
	if toks := u.Tokens(); len(toks) != 7 || u.Bag.Len() != 1 {
		t.Fatalf("tokens=%d diags=%d", len(toks), u.Bag.Len())
	}
}

func TestUnitCheck(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		defs  int
		exprs int
		code  diag.Code
	}{
		{"clean", "extern putchard(c)\ndef f(x) x*2\nf(3)\n; f(4)\n", 1, 2, 0},
		{"unknown variable", "def g(x) y\ng(1)\n", 0, 0, diag.SemUnknownVariable},
		{"syntax error recovers", "def (x) x\ndef h() 1\n", 1, 0, diag.SynExpectPrototype},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := LoadReader("c.k", strings.NewReader(tt.src), 16)
			if err != nil {
				t.Fatal(err)
			}
			res, err := u.Check()
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res.Definitions != tt.defs || res.Expressions != tt.exprs {
				t.Fatalf("result = %+v", res)
			}
			if tt.code == 0 {
				if u.Bag.Len() != 0 {
					t.Fatalf("unexpected diagnostics: %+v", u.Bag.Items())
				}
				return
			}
			if !u.Bag.HasErrors() || u.Bag.Items()[0].Code != tt.code {
				t.Fatalf("diagnostics = %+v, want %s", u.Bag.Items(), tt.code.ID())
			}
		})
	}
}

func TestUnitCheckDropsTopLevel(t *testing.T) {
	u, err := LoadReader("c.k", strings.NewReader("def f() 1\n2+3\n"), 4)
	if err != nil {
		t.Fatal(err)
	}
	res, err := u.Check()
	if err != nil {
		t.Fatal(err)
	}
	if res.Module.Func(ast.AnonExprName) != nil || res.Module.Func("f") == nil {
		t.Fatalf("module keeps the wrong functions")
	}
}

func TestTestdataPrograms(t *testing.T) {
	progs, err := filepath.Glob(filepath.Join("..", "..", "testdata", "*.k"))
	if err != nil {
		t.Fatal(err)
	}
	if len(progs) == 0 {
		t.Fatalf("no programs under testdata")
	}
	for _, prog := range progs {
		name := strings.TrimSuffix(filepath.Base(prog), ".k")
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(prog)
			if err != nil {
				t.Fatal(err)
			}
			want, err := os.ReadFile(strings.TrimSuffix(prog, ".k") + ".out")
			if err != nil {
				t.Fatal(err)
			}
			r := runSession(t, string(src), nil)
			if r.res.Errors != 0 || r.res.Fatal != nil {
				t.Fatalf("result = %+v\n%s", r.res, r.stderr)
			}
			if r.stdout != string(want) {
				t.Fatalf("stdout = %q, want %q", r.stdout, want)
			}
		})
	}
}
