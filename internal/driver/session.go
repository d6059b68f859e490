package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"kalmap/internal/ast"
	"kalmap/internal/config"
	"kalmap/internal/cuda"
	"kalmap/internal/cuda/simdev"
	"kalmap/internal/devcc"
	"kalmap/internal/diag"
	"kalmap/internal/diagfmt"
	"kalmap/internal/engine"
	"kalmap/internal/ir"
	"kalmap/internal/irgen"
	"kalmap/internal/lexer"
	"kalmap/internal/nvvm"
	"kalmap/internal/observ"
	"kalmap/internal/offload"
	"kalmap/internal/parser"
	"kalmap/internal/rtlib"
	"kalmap/internal/source"
	"kalmap/internal/token"
	"kalmap/internal/trace"
	"kalmap/internal/vm"
)

// Prompt is printed before each top-level unit in interactive sessions.
const Prompt = "ready> "

type Options struct {
	Config config.Config
	// Driver replaces the one Config.Device.Driver names.
	Driver cuda.Driver

	Stdout io.Writer // program output, nil means os.Stdout
	Stderr io.Writer // prompt, results, diagnostics; nil means os.Stderr

	Prompt     bool
	Color      bool
	DumpIR     bool   // print every definition as it is compiled
	DumpModule bool   // print the live module at EOF
	EmitLL     string // write the live module as LLVM IR at EOF
	Timings    bool   // print the phase breakdown of every map call
}

// Result summarizes a finished session.
type Result struct {
	Units     int       // top-level units consumed, ';' excluded
	Values    []float64 // one per top-level expression that ran
	RunErrors int       // top-level expressions that faulted
	Errors    int       // error diagnostics
	// Fatal is set when a device failure ended the session early.
	Fatal *engine.FatalError
}

// Session is one interactive or batch run: a live module that grows
// definition by definition, the VM that executes it and the map
// dispatcher it offloads through.
type Session struct {
	opts   Options
	stdout io.Writer
	stderr io.Writer

	fs     *source.FileSet
	rep    *diag.StreamReporter
	ops    *parser.OpTable
	arenas *ast.Builder
	mod    *ir.Module
	gen    *irgen.Generator
	vm     *vm.VM
	engine *engine.Engine
	disp   *offload.Dispatcher
}

// NewSession wires the pipeline the configuration describes.
func NewSession(opts Options) (*Session, error) {
	cfg := opts.Config
	s := &Session{
		opts:   opts,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		fs:     source.NewFileSet(),
		ops:    parser.NewOpTable(),
		arenas: ast.NewBuilder(0),
		mod:    ir.NewModule("kalmap"),
	}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if s.stderr == nil {
		s.stderr = os.Stderr
	}
	s.rep = &diag.StreamReporter{Sink: s.render, Limit: cfg.Runtime.MaxDiagnostics}

	drv := opts.Driver
	if drv == nil {
		var err error
		if drv, err = engine.NewDriver(DriverOptions(cfg)); err != nil {
			return nil, err
		}
	}
	major, minor, err := config.ParseCompute(cfg.Device.MinCompute)
	if err != nil {
		return nil, err
	}
	s.engine = engine.New(drv, engine.Options{
		MinMajor: major,
		MinMinor: minor,
		MaxBlock: int32(cfg.Device.MaxBlock),
	})

	compiler, err := devcc.Select(CompilerOptions(cfg, drv))
	if err != nil {
		return nil, err
	}
	abi, err := offload.ParseABI(cfg.Device.ABI)
	if err != nil {
		return nil, err
	}

	s.gen = irgen.New(s.mod, s.ops, irgen.Options{Reporter: s.rep})
	s.vm = vm.New(s.mod, vm.Options{MaxDepth: cfg.Runtime.MaxDepth, Stdout: s.stdout})
	rtlib.Register(s.vm, rtlib.Options{Seed: cfg.Runtime.Seed, MaxVectorLen: cfg.Runtime.MaxVectorLen})

	dopts := offload.Options{
		Compiler:     compiler,
		Engine:       s.engine,
		ABI:          abi,
		MaxVectorLen: cfg.Runtime.MaxVectorLen,
		FatalErrors:  cfg.Device.FatalErrors,
		Reporter:     s.rep,
	}
	if opts.Timings {
		dopts.Timings = s.printTimings
	}
	s.disp = offload.NewDispatcher(dopts)
	s.disp.Bind(s.vm)
	return s, nil
}

// DriverOptions maps the [device] and [sim] sections onto engine.NewDriver.
func DriverOptions(cfg config.Config) engine.DriverOptions {
	opts := engine.DriverOptions{
		Kind:    cfg.Device.Driver,
		Library: cfg.Device.Library,
		Sim:     simdev.Options{Workers: cfg.Sim.Workers},
	}
	for _, d := range cfg.Sim.Devices {
		opts.Sim.Devices = append(opts.Sim.Devices, simdev.DeviceSpec{
			Name:               d.Name,
			Major:              d.Major,
			Minor:              d.Minor,
			TotalMem:           d.TotalMem,
			MaxThreadsPerBlock: d.MaxThreadsPerBlock,
		})
	}
	return opts
}

// CompilerOptions maps [toolchain] onto devcc.Select. The simulated
// device only loads sim images, so "auto" never picks nvvm for it.
func CompilerOptions(cfg config.Config, drv cuda.Driver) devcc.Options {
	backend := cfg.Toolchain.Compiler
	if (backend == "" || backend == "auto") && drv != nil && drv.Name() == "sim" {
		backend = "sim"
	}
	return devcc.Options{
		Backend: backend,
		NVVMCC:  cfg.Toolchain.NVVMCC,
		WorkDir: cfg.Toolchain.WorkDir,
		Keep:    cfg.Toolchain.KeepTemps,
	}
}

// IsInteractive reports whether r is a terminal.
func IsInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s *Session) Module() *ir.Module { return s.mod }

func (s *Session) Engine() *engine.Engine { return s.engine }

func (s *Session) Dispatcher() *offload.Dispatcher { return s.disp }

func (s *Session) render(d diag.Diagnostic) {
	diagfmt.PrettyOne(s.stderr, d, s.fs, diagfmt.PrettyOpts{Color: s.opts.Color, ShowNotes: true})
}

func (s *Session) printTimings(r observ.Report) {
	fmt.Fprint(s.stderr, r.Summary())
}

// Run reads top-level units from in until EOF and evaluates them. Units
// that fail to parse or compile are reported and skipped; the session
// goes on. A device failure with fatal errors enabled stops it.
func (s *Session) Run(ctx context.Context, name string, in io.Reader) (res Result, err error) {
	ctx, span := trace.StartSpan(ctx, trace.ScopeSession, "session")
	span.WithExtra("input", name)
	defer func() {
		res.Errors = s.rep.Errors()
		span.End(fmt.Sprintf("units=%d errors=%d", res.Units, res.Errors))
	}()

	id := s.fs.AddStreamed(name)
	lx := lexer.NewStream(s.fs, id, in, lexer.Options{Reporter: s.rep})
	p := parser.New(lx, s.arenas, s.ops, parser.Options{Reporter: s.rep})

	for {
		if s.opts.Prompt {
			fmt.Fprint(s.stderr, Prompt)
		}
		s.arenas.Reset()
		tok := p.Peek()
		switch {
		case tok.Kind == token.EOF:
			if err := lx.Err(); err != nil {
				return res, fmt.Errorf("read %s: %w", name, err)
			}
			return res, s.finish()
		case tok.IsChar(';'):
			p.Skip()
			continue
		}

		res.Units++
		var fatal *engine.FatalError
		switch tok.Kind {
		case token.KwDef:
			s.handleDefinition(ctx, p)
		case token.KwExtern:
			s.handleExtern(ctx, p)
		default:
			fatal = s.handleTopLevel(ctx, p, &res)
		}
		if fatal != nil {
			res.Fatal = fatal
			s.dumpRing(ctx)
			return res, nil
		}
	}
}

func (s *Session) handleDefinition(ctx context.Context, p *parser.Parser) {
	_, span := trace.StartSpan(ctx, trace.ScopeUnit, "definition")
	decl, ok := p.ParseDefinition()
	if !ok {
		p.Skip()
		span.End("syntax error")
		return
	}
	f, ok := s.gen.Define(s.arenas.Exprs, decl)
	if !ok {
		span.End("rejected")
		return
	}
	s.dump("Read function definition:", f)
	span.End(f.Name)
}

func (s *Session) handleExtern(ctx context.Context, p *parser.Parser) {
	_, span := trace.StartSpan(ctx, trace.ScopeUnit, "extern")
	proto, ok := p.ParseExtern()
	if !ok {
		p.Skip()
		span.End("syntax error")
		return
	}
	f, ok := s.gen.Extern(proto)
	if !ok {
		span.End("rejected")
		return
	}
	s.dump("Read extern:", f)
	span.End(f.Name)
}

func (s *Session) handleTopLevel(ctx context.Context, p *parser.Parser, res *Result) *engine.FatalError {
	ctx, span := trace.StartSpan(ctx, trace.ScopeUnit, "toplevel")
	decl, ok := p.ParseTopLevelExpr()
	if !ok {
		p.Skip()
		span.End("syntax error")
		return nil
	}
	f, ok := s.gen.Define(s.arenas.Exprs, decl)
	if !ok {
		span.End("rejected")
		return nil
	}
	s.dump("Read top-level expression:", f)
	defer s.mod.RemoveFunc(ast.AnonExprName)

	v, vmErr := s.vm.Run(ctx, ast.AnonExprName)
	if vmErr == nil {
		fmt.Fprintf(s.stderr, "Evaluated to %f\n", v.F)
		res.Values = append(res.Values, v.F)
		span.End("ok")
		return nil
	}

	res.RunErrors++
	var fatal *engine.FatalError
	if errors.As(vmErr, &fatal) {
		// the dispatcher already reported the device failure
		span.End("fatal")
		return fatal
	}
	diag.ReportError(s.rep, diag.RunFault, decl.Proto.Span, vmErr.Error()).
		WithNote(decl.Proto.Span, vmErr.FormatTrace()).
		Emit()
	span.End(vmErr.Code.String())
	return nil
}

func (s *Session) dump(header string, f *ir.Func) {
	if !s.opts.DumpIR || f == nil {
		return
	}
	fmt.Fprintln(s.stderr, header)
	if err := ir.DumpFunc(s.stderr, f); err != nil {
		fmt.Fprintf(s.stderr, "dump failed: %v\n", err)
	}
}

func (s *Session) finish() error {
	if s.opts.DumpModule {
		if err := ir.Dump(s.stderr, s.mod); err != nil {
			return err
		}
	}
	if s.opts.EmitLL != "" {
		text, err := nvvm.Emit(s.mod)
		if err != nil {
			return fmt.Errorf("emit llvm: %w", err)
		}
		if err := os.WriteFile(s.opts.EmitLL, []byte(text), 0o600); err != nil {
			return fmt.Errorf("emit llvm: %w", err)
		}
	}
	return nil
}

// dumpRing prints the trace ring buffer after a fatal failure.
func (s *Session) dumpRing(ctx context.Context) {
	ring := trace.Ring(trace.FromContext(ctx))
	if ring == nil {
		return
	}
	fmt.Fprintln(s.stderr, "trace (most recent events):")
	_ = ring.Dump(s.stderr, trace.FormatText)
}
