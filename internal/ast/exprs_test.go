package ast

import (
	"testing"

	"kalmap/internal/source"
)

type mapEnv struct {
	vars  map[string]Type
	funcs map[string]Type
}

func (m mapEnv) VarType(name string) (Type, bool) {
	t, ok := m.vars[name]
	return t, ok
}

func (m mapEnv) FuncResult(name string) (Type, bool) {
	t, ok := m.funcs[name]
	return t, ok
}

func TestArena_OneBased(t *testing.T) {
	a := NewArena[int](0)
	if a.Get(0) != nil {
		t.Fatalf("index 0 must be nil")
	}
	id := a.Allocate(7)
	if id != 1 || *a.Get(id) != 7 {
		t.Fatalf("Allocate = %d", id)
	}
	if a.Get(2) != nil {
		t.Fatalf("out of range index must be nil")
	}
	a.Reset()
	if a.Len() != 0 || a.Get(1) != nil {
		t.Fatalf("Reset left %d elements", a.Len())
	}
}

func TestExprs_AccessorsCheckKind(t *testing.T) {
	e := NewExprs(0)
	num := e.NewNumber(source.Span{}, 2)
	v := e.NewVariable(source.Span{}, "x")
	bin := e.NewBinary(source.Span{}, '+', num, v)

	if _, ok := e.Binary(num); ok {
		t.Fatalf("Binary accessor accepted a Number")
	}
	data, ok := e.Binary(bin)
	if !ok || data.Op != '+' || data.Left != num || data.Right != v {
		t.Fatalf("Binary data = %+v", data)
	}
	if n, ok := e.Number(num); !ok || n.Value != 2 {
		t.Fatalf("Number data = %+v", n)
	}

	args := []ExprID{v}
	call := e.NewCall(source.Span{}, "f", args)
	args[0] = num
	if c, _ := e.Call(call); c.Args[0] != v {
		t.Fatalf("NewCall must copy args")
	}
}

func TestResultType(t *testing.T) {
	e := NewExprs(0)
	sp := source.Span{}
	env := mapEnv{
		vars:  map[string]Type{"v": TypeVector, "x": TypeScalar},
		funcs: map[string]Type{"mk": TypeVector, "sq": TypeScalar},
	}

	vecVar := e.NewVar(sp, []VarBinding{{Name: "w", Length: e.NewNumber(sp, 4)}}, e.NewVariable(sp, "w"))
	shadow := e.NewVar(sp, []VarBinding{{Name: "v", Init: e.NewNumber(sp, 1)}}, e.NewVariable(sp, "v"))

	tests := []struct {
		name string
		id   ExprID
		want Type
	}{
		{"number", e.NewNumber(sp, 1), TypeScalar},
		{"scalar param", e.NewVariable(sp, "x"), TypeScalar},
		{"vector param", e.NewVariable(sp, "v"), TypeVector},
		{"map", e.NewMap(sp, "sq", sp, []ExprID{e.NewVariable(sp, "v")}), TypeVector},
		{"call result", e.NewCall(sp, "mk", nil), TypeVector},
		{"comparison", e.NewBinary(sp, '<', e.NewVariable(sp, "v"), e.NewVariable(sp, "v")), TypeScalar},
		{"if takes then", e.NewIf(sp, e.NewNumber(sp, 1), e.NewVariable(sp, "v"), e.NewVariable(sp, "v")), TypeVector},
		{"for is scalar", e.NewFor(sp, ExprForData{Var: "i", Body: e.NewVariable(sp, "v")}), TypeScalar},
		{"vector binding", vecVar, TypeVector},
		{"scalar binding shadows vector", shadow, TypeScalar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.ResultType(tt.id, env); got != tt.want {
				t.Fatalf("ResultType = %v, want %v", got, tt.want)
			}
		})
	}
}
