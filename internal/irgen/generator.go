package irgen

import (
	"fmt"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/ir"
	"kalmap/internal/parser"
	"kalmap/internal/source"
)

// Runtime routines every module declares up front.
const (
	FnVectorMalloc = "vector_malloc"
	FnVectorFree   = "vector_free"
	FnVectorMap    = "vector_map"
)

type Options struct {
	Reporter diag.Reporter
}

// Generator lowers parsed units into the live session module. It owns no
// AST memory: each call receives the arenas the unit was parsed into.
type Generator struct {
	mod  *ir.Module
	ops  *parser.OpTable
	opts Options
}

// New creates a generator over mod and declares the runtime routines in it.
func New(mod *ir.Module, ops *parser.OpTable, opts Options) *Generator {
	if ops == nil {
		ops = parser.NewOpTable()
	}
	g := &Generator{mod: mod, ops: ops, opts: opts}
	DeclareRuntime(mod)
	return g
}

// DeclareRuntime adds vector_malloc, vector_free and vector_map declarations.
func DeclareRuntime(mod *ir.Module) {
	mod.DeclareFunc(FnVectorMalloc, []ir.Param{{Name: "v", Type: ir.TypePtrVec}, {Name: "len", Type: ir.TypeF64}}, ir.TypeVoid)
	mod.DeclareFunc(FnVectorFree, []ir.Param{{Name: "v", Type: ir.TypePtrVec}}, ir.TypeVoid)
	mod.DeclareFunc(FnVectorMap, []ir.Param{
		{Name: "name", Type: ir.TypePtrI8},
		{Name: "res", Type: ir.TypePtrVec},
		{Name: "args", Type: ir.TypePtrVec},
		{Name: "argc", Type: ir.TypeI32},
	}, ir.TypeVoid)
}

func (g *Generator) Module() *ir.Module { return g.mod }

func (g *Generator) Ops() *parser.OpTable { return g.ops }

func (g *Generator) report(code diag.Code, sp source.Span, msg string) {
	if g.opts.Reporter == nil {
		return
	}
	diag.ReportError(g.opts.Reporter, code, sp, msg).Emit()
}

// Extern declares a prototype without a body. Externs never install an
// operator precedence.
func (g *Generator) Extern(proto *ast.Prototype) (*ir.Func, bool) {
	f, _, ok := g.declare(proto)
	return f, ok
}

// Define compiles a function definition into the module. On failure the
// function is removed (or reverted to the declaration it filled) and the
// operator it declared is retracted. A rejected redefinition of a binary
// operator keeps the earlier body but retracts the operator too.
func (g *Generator) Define(exprs *ast.Exprs, decl *ast.FuncDecl) (*ir.Func, bool) {
	proto := &decl.Proto
	if proto.Name == ast.AnonExprName {
		g.mod.RemoveFunc(ast.AnonExprName)
		proto.Result = exprs.ResultType(decl.Body, funcEnv{mod: g.mod})
	}

	f, created, ok := g.declare(proto)
	if !ok {
		// a rejected operator definition leaves the operator unusable
		if proto.Kind == ast.ProtoBinary {
			g.ops.Retract(proto.OpChar)
		}
		return nil, false
	}

	var (
		prevPrec    int
		prevExisted bool
	)
	if proto.Kind == ast.ProtoBinary {
		prevPrec, prevExisted = g.ops.Install(proto.OpChar, proto.Precedence)
	}
	globals := len(g.mod.Globals)
	fail := func() (*ir.Func, bool) {
		// map callee names interned by this body
		g.mod.TruncateGlobals(globals)
		if created {
			g.mod.RemoveFunc(f.Name)
		} else {
			f.Blocks = nil
			f.Extern = true
			f.NextValue = 0
		}
		if proto.Kind == ast.ProtoBinary {
			g.ops.Restore(proto.OpChar, prevPrec, prevExisted)
		}
		return nil, false
	}

	fg := newFuncGen(g, exprs, f)
	for i, prm := range proto.Params {
		slot := fg.b.EntryAlloca(f.Params[i].Type, 1, prm.Name)
		fg.b.Store(ir.ParamRef(i, f.Params[i].Type), slot)
		fg.scope.bind(prm.Name, slot)
	}
	val, ok := fg.expr(decl.Body)
	if !ok {
		return fail()
	}
	if val.Type != f.Result {
		g.report(diag.SemTypeMismatch, exprs.Get(decl.Body).Span,
			fmt.Sprintf("function %s returns %s but its body is %s", proto.Name, proto.Result, astType(val.Type)))
		return fail()
	}
	fg.b.Ret(val)

	if err := ir.VerifyFunc(g.mod, f); err != nil {
		g.report(diag.SemVerifyFailed, proto.Span, fmt.Sprintf("function %s failed verification: %v", proto.Name, err))
		return fail()
	}
	ir.SimplifyCFG(f)
	return f, true
}

// declare finds or creates the module function for proto. created reports
// whether a new declaration was added.
func (g *Generator) declare(proto *ast.Prototype) (f *ir.Func, created, ok bool) {
	params := make([]ir.Param, len(proto.Params))
	types := make([]ir.Type, len(proto.Params))
	for i, p := range proto.Params {
		params[i] = ir.Param{Name: p.Name, Type: irType(p.Type)}
		types[i] = params[i].Type
	}
	result := irType(proto.Result)

	if f = g.mod.Func(proto.Name); f != nil {
		if !f.IsDeclaration() {
			g.report(diag.SemRedefinition, proto.Span, "redefinition of function "+proto.Name)
			return nil, false, false
		}
		if len(f.Params) != len(params) {
			g.report(diag.SemPrototypeMismatch, proto.Span, "redefinition of function with different # args")
			return nil, false, false
		}
		if !f.SameSignature(types, result) {
			g.report(diag.SemPrototypeMismatch, proto.Span, "redefinition of function with different parameter or result types")
			return nil, false, false
		}
		copy(f.Params, params)
		return f, false, true
	}
	return g.mod.DeclareFunc(proto.Name, params, result), true, true
}

func irType(t ast.Type) ir.Type {
	if t == ast.TypeVector {
		return ir.TypeVec
	}
	return ir.TypeF64
}

func astType(t ir.Type) ast.Type {
	if t == ir.TypeVec {
		return ast.TypeVector
	}
	return ast.TypeScalar
}

// funcEnv answers ResultType queries about already declared functions.
type funcEnv struct {
	mod *ir.Module
}

func (funcEnv) VarType(string) (ast.Type, bool) { return ast.TypeScalar, false }

func (e funcEnv) FuncResult(name string) (ast.Type, bool) {
	if f := e.mod.Func(name); f != nil {
		return astType(f.Result), true
	}
	return ast.TypeScalar, false
}
