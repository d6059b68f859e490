package ir

import (
	"errors"
	"fmt"
)

// anyType disables the expected-type check for an operand.
const anyType Type = 0xff

// Verify checks module invariants: terminated blocks, existing branch
// targets, defined values with consistent types, call signatures, phi
// predecessors and annotations. All violations are joined into one error.
func Verify(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := verifyFunc(m, f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	for _, a := range m.Annotations {
		f := m.Func(a.Func)
		switch {
		case f == nil:
			errs = append(errs, fmt.Errorf("annotation %s on unknown function %s", a.Kind, a.Func))
		case a.Kind == AnnotationKernel && (f.IsDeclaration() || f.Result != TypeVoid):
			errs = append(errs, fmt.Errorf("kernel %s must be a void definition", a.Func))
		}
	}
	return errors.Join(errs...)
}

// VerifyFunc checks a single function against the module it belongs to.
func VerifyFunc(m *Module, f *Func) error {
	return verifyFunc(m, f)
}

type funcVerifier struct {
	m     *Module
	f     *Func
	defs  map[ValueID]Type
	preds [][]BlockID
	errs  []error
}

func verifyFunc(m *Module, f *Func) error {
	if f.Extern {
		if len(f.Blocks) != 0 {
			return errors.New("declaration has a body")
		}
		return nil
	}
	if len(f.Blocks) == 0 {
		return errors.New("definition has no blocks")
	}
	v := &funcVerifier{m: m, f: f, defs: make(map[ValueID]Type), preds: f.Predecessors()}

	// 1. Collect definitions
	for bi := range f.Blocks {
		for ii := range f.Blocks[bi].Instrs {
			in := &f.Blocks[bi].Instrs[ii]
			if in.Dst == NoValue {
				continue
			}
			if _, dup := v.defs[in.Dst]; dup {
				v.errorf("bb%d: value %%%d defined twice", bi, in.Dst)
			}
			v.defs[in.Dst] = in.Type
		}
	}

	// 2. Check instructions and terminators
	for bi := range f.Blocks {
		blk := &f.Blocks[bi]
		if blk.ID != BlockID(bi) {
			v.errorf("bb%d: block id %d out of place", bi, blk.ID)
		}
		seenNonPhi := false
		for ii := range blk.Instrs {
			in := &blk.Instrs[ii]
			if in.Kind == InstrPhi {
				if seenNonPhi {
					v.errorf("bb%d: phi after non-phi instruction", bi)
				}
			} else {
				seenNonPhi = true
			}
			v.instr(BlockID(bi), in)
		}
		v.term(BlockID(bi), &blk.Term)
	}
	return errors.Join(v.errs...)
}

func (v *funcVerifier) errorf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *funcVerifier) operand(bb BlockID, o Operand, want Type, what string) {
	switch o.Kind {
	case OperandNone:
		v.errorf("bb%d: %s: missing operand", bb, what)
		return
	case OperandValue:
		t, ok := v.defs[o.Value]
		if !ok {
			v.errorf("bb%d: %s: undefined value %%%d", bb, what, o.Value)
			return
		}
		if t != o.Type {
			v.errorf("bb%d: %s: %%%d has type %s, operand says %s", bb, what, o.Value, t, o.Type)
		}
	case OperandParam:
		if o.Param < 0 || o.Param >= len(v.f.Params) {
			v.errorf("bb%d: %s: parameter %d out of range", bb, what, o.Param)
			return
		}
		if v.f.Params[o.Param].Type != o.Type {
			v.errorf("bb%d: %s: parameter %d has type %s", bb, what, o.Param, v.f.Params[o.Param].Type)
		}
	case OperandGlobal:
		if v.m.Global(o.Global) == nil {
			v.errorf("bb%d: %s: unknown global @%s", bb, what, o.Global)
		}
		if o.Type != TypePtrI8 {
			v.errorf("bb%d: %s: global @%s must be i8*", bb, what, o.Global)
		}
	}
	if want != anyType && o.Type != want {
		v.errorf("bb%d: %s: operand type %s, want %s", bb, what, o.Type, want)
	}
}

func (v *funcVerifier) instr(bb BlockID, in *Instr) {
	what := in.Kind.String()
	switch in.Kind {
	case InstrFAdd, InstrFSub, InstrFMul, InstrFDiv:
		v.operand(bb, in.Bin.L, TypeF64, what)
		v.operand(bb, in.Bin.R, TypeF64, what)
		v.result(bb, in, TypeF64)
	case InstrAdd, InstrMul:
		v.operand(bb, in.Bin.L, TypeI32, what)
		v.operand(bb, in.Bin.R, TypeI32, what)
		v.result(bb, in, TypeI32)
	case InstrFCmp:
		if in.Cmp.Pred < PredULT || in.Cmp.Pred > PredONE {
			v.errorf("bb%d: fcmp: bad predicate %d", bb, in.Cmp.Pred)
		}
		v.operand(bb, in.Cmp.L, TypeF64, what)
		v.operand(bb, in.Cmp.R, TypeF64, what)
		v.result(bb, in, TypeI1)
	case InstrICmp:
		if in.Cmp.Pred != PredULT {
			v.errorf("bb%d: icmp: bad predicate %s", bb, in.Cmp.Pred)
		}
		v.operand(bb, in.Cmp.L, TypeI32, what)
		v.operand(bb, in.Cmp.R, TypeI32, what)
		v.result(bb, in, TypeI1)
	case InstrUIToFP:
		v.operand(bb, in.Cast.X, anyType, what)
		if t := in.Cast.X.Type; t != TypeI1 && t != TypeI32 {
			v.errorf("bb%d: uitofp: source type %s", bb, t)
		}
		v.result(bb, in, TypeF64)
	case InstrAlloca:
		if bb != Entry {
			v.errorf("bb%d: alloca outside the entry block", bb)
		}
		if PtrTo(in.Alloca.Elem) == TypeVoid {
			v.errorf("bb%d: alloca of %s", bb, in.Alloca.Elem)
		}
		c := in.Alloca.Count
		if c.Kind != OperandConst || c.Type != TypeI32 || c.I <= 0 {
			v.errorf("bb%d: alloca count must be a positive i32 constant", bb)
		}
		v.result(bb, in, PtrTo(in.Alloca.Elem))
	case InstrLoad:
		v.operand(bb, in.Load.Ptr, anyType, what)
		elem := in.Load.Ptr.Type.Elem()
		if elem == TypeVoid {
			v.errorf("bb%d: load through %s", bb, in.Load.Ptr.Type)
			return
		}
		v.result(bb, in, elem)
	case InstrStore:
		v.operand(bb, in.Store.Ptr, anyType, what)
		elem := in.Store.Ptr.Type.Elem()
		if elem == TypeVoid {
			v.errorf("bb%d: store through %s", bb, in.Store.Ptr.Type)
			return
		}
		v.operand(bb, in.Store.Val, elem, what)
		v.result(bb, in, TypeVoid)
	case InstrGEP:
		v.operand(bb, in.GEP.Ptr, anyType, what)
		v.operand(bb, in.GEP.Index, TypeI32, what)
		if in.GEP.Ptr.Type.Elem() == TypeVoid {
			v.errorf("bb%d: getelementptr on %s", bb, in.GEP.Ptr.Type)
			return
		}
		v.result(bb, in, in.GEP.Ptr.Type)
	case InstrCall:
		callee := v.m.Func(in.Call.Callee)
		if callee == nil {
			v.errorf("bb%d: call to unknown function %s", bb, in.Call.Callee)
			return
		}
		if len(in.Call.Args) != len(callee.Params) {
			v.errorf("bb%d: call %s: %d arguments, want %d", bb, callee.Name, len(in.Call.Args), len(callee.Params))
			return
		}
		for i, a := range in.Call.Args {
			v.operand(bb, a, callee.Params[i].Type, "call "+callee.Name)
		}
		v.result(bb, in, callee.Result)
	case InstrPhi:
		preds := v.preds[bb]
		if len(in.Phi.Incoming) != len(preds) {
			v.errorf("bb%d: phi has %d incoming, block has %d predecessors", bb, len(in.Phi.Incoming), len(preds))
		}
		for _, inc := range in.Phi.Incoming {
			if !containsBlock(preds, inc.Block) {
				v.errorf("bb%d: phi incoming from non-predecessor bb%d", bb, inc.Block)
			}
			v.operand(bb, inc.Value, in.Type, what)
		}
	default:
		v.errorf("bb%d: unknown instruction kind %d", bb, in.Kind)
	}
}

func (v *funcVerifier) result(bb BlockID, in *Instr, want Type) {
	if in.Type != want {
		v.errorf("bb%d: %s: result type %s, want %s", bb, in.Kind, in.Type, want)
	}
	if (in.Dst == NoValue) != (want == TypeVoid) {
		v.errorf("bb%d: %s: destination does not match result type", bb, in.Kind)
	}
}

func (v *funcVerifier) term(bb BlockID, t *Terminator) {
	switch t.Kind {
	case TermNone:
		v.errorf("bb%d: unterminated block", bb)
	case TermReturn:
		if v.f.Result == TypeVoid {
			if t.Return.HasValue {
				v.errorf("bb%d: void function returns a value", bb)
			}
			return
		}
		if !t.Return.HasValue {
			v.errorf("bb%d: missing return value", bb)
			return
		}
		v.operand(bb, t.Return.Value, v.f.Result, "ret")
	case TermBr:
		v.target(bb, t.Br.Target)
	case TermCondBr:
		v.operand(bb, t.CondBr.Cond, TypeI1, "br")
		v.target(bb, t.CondBr.Then)
		v.target(bb, t.CondBr.Else)
	}
}

func (v *funcVerifier) target(bb, target BlockID) {
	if int(target) >= len(v.f.Blocks) {
		v.errorf("bb%d: branch to missing bb%d", bb, target)
	}
	if target == Entry {
		v.errorf("bb%d: branch to the entry block", bb)
	}
}

func containsBlock(list []BlockID, id BlockID) bool {
	for _, b := range list {
		if b == id {
			return true
		}
	}
	return false
}
