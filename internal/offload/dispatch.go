package offload

import (
	"context"
	"errors"
	"fmt"

	"fortio.org/safecast"

	"kalmap/internal/devcc"
	"kalmap/internal/diag"
	"kalmap/internal/engine"
	"kalmap/internal/ir"
	"kalmap/internal/observ"
	"kalmap/internal/source"
	"kalmap/internal/trace"
)

// DefaultMaxVectorLen bounds the result of one map call.
const DefaultMaxVectorLen = 1 << 26

// MapError is a map call that was abandoned without touching the
// program's state. Code says which step gave up.
type MapError struct {
	Code   diag.Code
	Callee string
	Err    error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("map(%s): %v", e.Callee, e.Err)
}

func (e *MapError) Unwrap() error { return e.Err }

type Options struct {
	Compiler     devcc.Compiler
	Engine       *engine.Engine
	ABI          ABI
	MaxVectorLen int  // 0 means DefaultMaxVectorLen
	FatalErrors  bool // device failures end the run instead of aborting the call
	Reporter     diag.Reporter
	// Timings receives the phase breakdown of every map call, including
	// calls rejected while resolving the callee.
	Timings func(observ.Report)
}

// Dispatcher runs map calls against live modules.
type Dispatcher struct {
	opts  Options
	calls int
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.MaxVectorLen <= 0 {
		opts.MaxVectorLen = DefaultMaxVectorLen
	}
	return &Dispatcher{opts: opts}
}

// Calls counts map invocations, failed ones included.
func (d *Dispatcher) Calls() int { return d.calls }

// Map applies name element-wise over args on the device and returns the
// new result vector. live is read, never modified.
//
// A *MapError means the call was abandoned and reported; the caller
// continues with an empty result. An *engine.FatalError means the device
// session broke; with FatalErrors unset it is reported and downgraded to a
// *MapError as well.
func (d *Dispatcher) Map(ctx context.Context, live *ir.Module, name string, args [][]float64) (result []float64, err error) {
	d.calls++
	ctx, span := trace.StartSpan(ctx, trace.ScopeUnit, "map")
	span.WithExtra("callee", name)
	defer func() {
		detail := "ok"
		if err != nil {
			detail = err.Error()
			d.report(err)
		}
		span.End(detail)
	}()

	timer := observ.NewTimer(name)
	if d.opts.Timings != nil {
		defer func() { d.opts.Timings(timer.Report()) }()
	}

	done := timer.Track(observ.PhaseResolve)
	n, err := d.resolve(live, name, args)
	done(fmt.Sprintf("n=%d", n))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []float64{}, nil
	}
	out := make([]float64, n)

	done = timer.Track(observ.PhasePrune)
	pruned, err := Prune(live, name)
	done("")
	if err != nil {
		return nil, &MapError{Code: diag.OffUnknownCallee, Callee: name, Err: err}
	}

	done = timer.Track(observ.PhaseSynthesize)
	k, err := SynthesizeKernel(pruned, name, n, d.opts.ABI, d.opts.Engine.MaxBlock())
	if err != nil {
		done("")
		return nil, &MapError{Code: diag.OffSynthesis, Callee: name, Err: err}
	}
	done(k.ABI.String())

	done = timer.Track(observ.PhaseVerify)
	err = ir.Verify(pruned)
	done("")
	if err != nil {
		return nil, &MapError{Code: diag.OffKernelVerify, Callee: name, Err: err}
	}

	done = timer.Track(observ.PhaseCompile)
	code, err := d.opts.Compiler.Compile(ctx, pruned, k.Name)
	done(d.opts.Compiler.Name())
	if err != nil {
		return nil, &MapError{Code: diag.OffCompile, Callee: name, Err: err}
	}

	done = timer.Track(observ.PhaseLaunch)
	err = d.opts.Engine.Launch(ctx, engine.Request{
		Code:   code,
		N:      n,
		Inputs: args,
		Output: out,
		Legacy: k.ABI == ABILegacy,
	})
	done("")
	if err != nil {
		if d.opts.FatalErrors {
			return nil, err
		}
		return nil, &MapError{Code: diag.OffDevice, Callee: name, Err: err}
	}
	return out, nil
}

// resolve checks the callee and arguments and returns the element count.
func (d *Dispatcher) resolve(live *ir.Module, name string, args [][]float64) (int32, error) {
	fail := func(code diag.Code, format string, a ...any) (int32, error) {
		return 0, &MapError{Code: code, Callee: name, Err: fmt.Errorf(format, a...)}
	}
	f := live.Func(name)
	if f == nil {
		return fail(diag.OffUnknownCallee, "%w %s", ErrUnknownFunction, name)
	}
	if f.IsDeclaration() {
		return fail(diag.OffUnknownCallee, "%s has no body to offload", name)
	}
	if len(f.Params) != len(args) {
		return fail(diag.OffArity, "%s takes %d arguments, got %d vectors", name, len(f.Params), len(args))
	}
	if len(args) == 0 {
		return fail(diag.OffArity, "map needs at least one vector")
	}
	length := len(args[0])
	for i, a := range args[1:] {
		if len(a) != length {
			return fail(diag.OffLengthMismatch, "vector %d has %d elements, vector 1 has %d", i+2, len(a), length)
		}
	}
	if length > d.opts.MaxVectorLen {
		return fail(diag.OffHostAlloc, "cannot allocate a result of %d elements (limit %d)", length, d.opts.MaxVectorLen)
	}
	n, err := safecast.Conv[int32](length)
	if err != nil {
		return fail(diag.OffHostAlloc, "%w", err)
	}
	return n, nil
}

func (d *Dispatcher) report(err error) {
	if d.opts.Reporter == nil {
		return
	}
	var me *MapError
	if errors.As(err, &me) {
		b := diag.ReportError(d.opts.Reporter, me.Code, source.Span{}, me.Error())
		var ce *devcc.CompileError
		if errors.As(err, &ce) && ce.Log != "" {
			b = b.WithNote(source.Span{}, ce.Log)
		}
		b.Emit()
		return
	}
	diag.ReportError(d.opts.Reporter, diag.OffDevice, source.Span{}, err.Error()).Emit()
}
