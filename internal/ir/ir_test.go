package ir

import (
	"strings"
	"testing"
)

// buildAbs builds: double abs(double x) = if x < 0 then 0-x else x
func buildAbs(m *Module) *Func {
	f := &Func{Name: "abs", Params: []Param{{Name: "x", Type: TypeF64}}, Result: TypeF64}
	m.AddFunc(f)
	b := NewBuilder(f)
	x := ParamRef(0, TypeF64)
	cmp := b.FCmp(PredULT, x, ConstF64(0), "cmptmp")
	then := b.NewBlock("then")
	els := b.NewBlock("else")
	merge := b.NewBlock("ifcont")
	b.CondBr(cmp, then, els)

	b.SetBlock(then)
	neg := b.Binary(InstrFSub, ConstF64(0), x, "neg")
	b.Br(merge)

	b.SetBlock(els)
	b.Br(merge)

	b.SetBlock(merge)
	phi := b.Phi(TypeF64, []PhiIncoming{{Value: neg, Block: then}, {Value: x, Block: els}}, "iftmp")
	b.Ret(phi)
	return f
}

func TestBuilderProducesValidModule(t *testing.T) {
	m := NewModule("test")
	buildAbs(m)
	if err := Verify(m); err != nil {
		t.Fatalf("verify: %v", err)
	}
	out := m.String()
	for _, want := range []string{
		"define double @abs(double %arg0)",
		"fcmp ult double %arg0, 0.000000e+00",
		"phi double [ %2, %then1 ], [ %arg0, %else2 ]",
		"ret double %3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestEntryAllocaStaysInEntryPrefix(t *testing.T) {
	m := NewModule("test")
	f := &Func{Name: "f", Result: TypeF64}
	m.AddFunc(f)
	b := NewBuilder(f)
	slot := b.EntryAlloca(TypeF64, 1, "a")
	b.Store(ConstF64(1), slot)
	next := b.NewBlock("next")
	b.Br(next)
	b.SetBlock(next)
	slot2 := b.EntryAlloca(TypeF64, 1, "b")
	b.Store(ConstF64(2), slot2)
	b.Ret(b.Load(slot2, "v"))

	entry := f.Blocks[Entry].Instrs
	if entry[0].Kind != InstrAlloca || entry[1].Kind != InstrAlloca || entry[2].Kind != InstrStore {
		t.Fatalf("entry layout wrong: %v %v %v", entry[0].Kind, entry[1].Kind, entry[2].Kind)
	}
	if err := Verify(m); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejects(t *testing.T) {
	tests := []struct {
		name  string
		build func(m *Module)
		want  string
	}{
		{"unterminated", func(m *Module) {
			f := &Func{Name: "f", Result: TypeF64}
			m.AddFunc(f)
			NewBuilder(f)
		}, "unterminated block"},
		{"wrong return type", func(m *Module) {
			f := &Func{Name: "f", Result: TypeF64}
			m.AddFunc(f)
			NewBuilder(f).Ret(ConstI32(1))
		}, "operand type i32, want double"},
		{"unknown callee", func(m *Module) {
			f := &Func{Name: "f", Result: TypeF64}
			m.AddFunc(f)
			b := NewBuilder(f)
			b.Ret(b.Call("nope", TypeF64, nil, "c"))
		}, "unknown function nope"},
		{"call arity", func(m *Module) {
			m.DeclareFunc("g", []Param{{Type: TypeF64}}, TypeF64)
			f := &Func{Name: "f", Result: TypeF64}
			m.AddFunc(f)
			b := NewBuilder(f)
			b.Ret(b.Call("g", TypeF64, nil, "c"))
		}, "0 arguments, want 1"},
		{"undefined value", func(m *Module) {
			f := &Func{Name: "f", Result: TypeF64}
			m.AddFunc(f)
			NewBuilder(f).Ret(ValueRef(9, TypeF64))
		}, "undefined value %9"},
		{"kernel must be void", func(m *Module) {
			f := &Func{Name: "k", Result: TypeF64}
			m.AddFunc(f)
			NewBuilder(f).Ret(ConstF64(0))
			m.Annotate("k", AnnotationKernel, 1)
		}, "kernel k must be a void definition"},
		{"phi predecessor", func(m *Module) {
			f := &Func{Name: "f", Result: TypeF64}
			m.AddFunc(f)
			b := NewBuilder(f)
			next := b.NewBlock("next")
			b.Br(next)
			b.SetBlock(next)
			b.Ret(b.Phi(TypeF64, []PhiIncoming{{Value: ConstF64(1), Block: 5}}, "p"))
		}, "non-predecessor bb5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModule("test")
			tt.build(m)
			err := Verify(m)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Verify() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestSimplifyCFG(t *testing.T) {
	m := NewModule("test")
	f := &Func{Name: "f", Result: TypeF64}
	m.AddFunc(f)
	b := NewBuilder(f)
	mid := b.NewBlock("mid")
	dead := b.NewBlock("dead")
	last := b.NewBlock("last")
	b.Br(mid)
	b.SetBlock(mid)
	v := b.Binary(InstrFAdd, ConstF64(1), ConstF64(2), "s")
	b.Br(last)
	b.SetBlock(dead)
	b.Br(last)
	b.SetBlock(last)
	b.Ret(v)

	SimplifyCFG(f)
	if len(f.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1\n%s", len(f.Blocks), m)
	}
	if err := Verify(m); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSimplifyCFGKeepsPhiConsistent(t *testing.T) {
	m := NewModule("test")
	f := buildAbs(m)
	SimplifyCFG(f)
	if err := Verify(m); err != nil {
		t.Fatalf("verify after simplify: %v\n%s", err, m)
	}
	if len(f.Blocks) != 4 {
		t.Fatalf("diamond must survive, got %d blocks", len(f.Blocks))
	}
}

func TestModuleGlobalsAndRemoval(t *testing.T) {
	m := NewModule("test")
	a := m.AddGlobalString("sq")
	b := m.AddGlobalString("sq")
	if a != ".str" || b != ".str.1" {
		t.Fatalf("global names = %q, %q", a, b)
	}
	if s, ok := m.GlobalString(b); !ok || s != "sq" {
		t.Fatalf("GlobalString = %q, %v", s, ok)
	}

	buildAbs(m)
	m.DeclareFunc("putchard", []Param{{Type: TypeF64}}, TypeF64)
	if !m.RemoveFunc("abs") || m.Func("abs") != nil {
		t.Fatalf("abs not removed")
	}
	if m.Func("putchard") == nil {
		t.Fatalf("index broken after removal")
	}
	if m.RemoveFunc("abs") {
		t.Fatalf("second removal must report false")
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := NewModule("test")
	buildAbs(m)
	c := m.Clone()
	c.Func("abs").Blocks[Entry].Instrs[0].Cmp.Pred = PredUGT
	c.RemoveFunc("abs")
	if m.Func("abs") == nil {
		t.Fatalf("clone removal leaked into original")
	}
	if m.Func("abs").Blocks[Entry].Instrs[0].Cmp.Pred != PredULT {
		t.Fatalf("clone mutation leaked into original")
	}
}
