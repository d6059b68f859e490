// Package nvvm lowers kalmap IR to LLVM assembly with llir, adding the
// NVVM kernel annotations a device toolchain expects.
package nvvm

import (
	"fmt"
	"strings"

	lir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"kalmap/internal/ir"
)

type lowerer struct {
	src     *ir.Module
	dst     *lir.Module
	dvec    types.Type
	funcs   map[string]*lir.Func
	globals map[string]*lir.Global
}

// Lower translates m into an llir module. m must verify.
func Lower(m *ir.Module) (*lir.Module, error) {
	l := &lowerer{
		src:     m,
		dst:     lir.NewModule(),
		funcs:   make(map[string]*lir.Func, len(m.Funcs)),
		globals: make(map[string]*lir.Global, len(m.Globals)),
	}
	l.dst.SourceFilename = m.Name
	l.dst.DataLayout = m.DataLayout
	l.dst.TargetTriple = m.Triple
	l.dvec = l.dst.NewTypeDef("dvec", types.NewStruct(types.NewPointer(types.Double), types.I32))

	for _, g := range m.Globals {
		def := l.dst.NewGlobalDef(g.Name, constant.NewCharArray(append([]byte(nil), g.Data...)))
		def.Immutable = true
		def.Linkage = enum.LinkagePrivate
		l.globals[g.Name] = def
	}
	for _, f := range m.Funcs {
		params := make([]*lir.Param, len(f.Params))
		for i, p := range f.Params {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("arg%d", i)
			}
			params[i] = lir.NewParam(name, l.typ(p.Type))
		}
		l.funcs[f.Name] = l.dst.NewFunc(f.Name, l.typ(f.Result), params...)
	}
	for _, f := range m.Funcs {
		if f.IsDeclaration() {
			continue
		}
		if err := l.lowerFunc(f, l.funcs[f.Name]); err != nil {
			return nil, fmt.Errorf("lower %s: %w", f.Name, err)
		}
	}
	return l.dst, nil
}

func (l *lowerer) typ(t ir.Type) types.Type {
	switch t {
	case ir.TypeF64:
		return types.Double
	case ir.TypeI1:
		return types.I1
	case ir.TypeI32:
		return types.I32
	case ir.TypePtrF64:
		return types.NewPointer(types.Double)
	case ir.TypeVec:
		return l.dvec
	case ir.TypePtrVec:
		return types.NewPointer(l.dvec)
	case ir.TypePtrI8:
		return types.NewPointer(types.I8)
	}
	return types.Void
}

type funcState struct {
	*lowerer
	fn     *lir.Func
	blocks []*lir.Block
	values map[ir.ValueID]value.Value
}

type pendingPhi struct {
	phi *lir.InstPhi
	in  *ir.PhiInstr
}

func (l *lowerer) lowerFunc(f *ir.Func, fn *lir.Func) error {
	st := &funcState{lowerer: l, fn: fn, values: make(map[ir.ValueID]value.Value, f.NextValue)}
	st.blocks = make([]*lir.Block, len(f.Blocks))
	for i := range f.Blocks {
		name := f.Blocks[i].Name
		if name == "" {
			name = "bb"
		}
		st.blocks[i] = fn.NewBlock(fmt.Sprintf("%s%d", name, i))
	}

	// Definitions dominate uses, so visiting blocks in reverse postorder
	// sees every non-phi operand before it is used.
	var phis []pendingPhi
	for _, id := range reversePostorder(f) {
		blk := &f.Blocks[id]
		out := st.blocks[id]
		for i := range blk.Instrs {
			in := &blk.Instrs[i]
			if in.Kind == ir.InstrPhi {
				phi := &lir.InstPhi{Typ: l.typ(in.Type)}
				out.Insts = append(out.Insts, phi)
				st.values[in.Dst] = phi
				phis = append(phis, pendingPhi{phi: phi, in: &in.Phi})
				continue
			}
			if err := st.instr(out, in); err != nil {
				return err
			}
		}
		if err := st.term(out, &blk.Term); err != nil {
			return err
		}
	}
	for _, p := range phis {
		for _, inc := range p.in.Incoming {
			v, err := st.operand(inc.Value)
			if err != nil {
				return err
			}
			p.phi.Incs = append(p.phi.Incs, lir.NewIncoming(v, st.blocks[inc.Block]))
		}
	}
	return nil
}

func reversePostorder(f *ir.Func) []ir.BlockID {
	seen := make([]bool, len(f.Blocks))
	var post []ir.BlockID
	var visit func(ir.BlockID)
	visit = func(b ir.BlockID) {
		if int(b) >= len(seen) || seen[b] {
			return
		}
		seen[b] = true
		for _, s := range f.Blocks[b].Term.Successors() {
			visit(s)
		}
		post = append(post, b)
	}
	visit(ir.Entry)
	out := make([]ir.BlockID, 0, len(f.Blocks))
	for i := len(post) - 1; i >= 0; i-- {
		out = append(out, post[i])
	}
	// unreachable blocks still need bodies
	for i := range f.Blocks {
		if !seen[i] {
			out = append(out, ir.BlockID(i))
		}
	}
	return out
}

func (st *funcState) operand(o ir.Operand) (value.Value, error) {
	switch o.Kind {
	case ir.OperandConst:
		switch o.Type {
		case ir.TypeF64:
			return constant.NewFloat(types.Double, o.F), nil
		case ir.TypeI32:
			return constant.NewInt(types.I32, o.I), nil
		case ir.TypeI1:
			return constant.NewBool(o.I != 0), nil
		}
	case ir.OperandParam:
		if o.Param < len(st.fn.Params) {
			return st.fn.Params[o.Param], nil
		}
	case ir.OperandValue:
		if v, ok := st.values[o.Value]; ok {
			return v, nil
		}
	case ir.OperandGlobal:
		if g, ok := st.globals[o.Global]; ok {
			zero := constant.NewInt(types.I64, 0)
			return constant.NewGetElementPtr(g.ContentType, g, zero, zero), nil
		}
	}
	return nil, fmt.Errorf("unresolved operand %s", o)
}

func (st *funcState) operands(ops ...ir.Operand) ([]value.Value, error) {
	out := make([]value.Value, len(ops))
	for i, o := range ops {
		v, err := st.operand(o)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fpred(p ir.Pred) enum.FPred {
	switch p {
	case ir.PredUGT:
		return enum.FPredUGT
	case ir.PredONE:
		return enum.FPredONE
	}
	return enum.FPredULT
}

func (st *funcState) instr(out *lir.Block, in *ir.Instr) error {
	var (
		res value.Value
		err error
		ops []value.Value
	)
	switch in.Kind {
	case ir.InstrFAdd, ir.InstrFSub, ir.InstrFMul, ir.InstrFDiv, ir.InstrAdd, ir.InstrMul:
		if ops, err = st.operands(in.Bin.L, in.Bin.R); err != nil {
			return err
		}
		switch in.Kind {
		case ir.InstrFAdd:
			res = out.NewFAdd(ops[0], ops[1])
		case ir.InstrFSub:
			res = out.NewFSub(ops[0], ops[1])
		case ir.InstrFMul:
			res = out.NewFMul(ops[0], ops[1])
		case ir.InstrFDiv:
			res = out.NewFDiv(ops[0], ops[1])
		case ir.InstrAdd:
			res = out.NewAdd(ops[0], ops[1])
		default:
			res = out.NewMul(ops[0], ops[1])
		}
	case ir.InstrFCmp:
		if ops, err = st.operands(in.Cmp.L, in.Cmp.R); err != nil {
			return err
		}
		res = out.NewFCmp(fpred(in.Cmp.Pred), ops[0], ops[1])
	case ir.InstrICmp:
		if ops, err = st.operands(in.Cmp.L, in.Cmp.R); err != nil {
			return err
		}
		res = out.NewICmp(enum.IPredULT, ops[0], ops[1])
	case ir.InstrUIToFP:
		if ops, err = st.operands(in.Cast.X); err != nil {
			return err
		}
		res = out.NewUIToFP(ops[0], types.Double)
	case ir.InstrAlloca:
		a := out.NewAlloca(st.typ(in.Alloca.Elem))
		if c := in.Alloca.Count; c.Kind != ir.OperandConst || c.I != 1 {
			if a.NElems, err = st.operand(c); err != nil {
				return err
			}
		}
		res = a
	case ir.InstrLoad:
		if ops, err = st.operands(in.Load.Ptr); err != nil {
			return err
		}
		res = out.NewLoad(st.typ(in.Load.Ptr.Type.Elem()), ops[0])
	case ir.InstrStore:
		if ops, err = st.operands(in.Store.Val, in.Store.Ptr); err != nil {
			return err
		}
		out.NewStore(ops[0], ops[1])
	case ir.InstrGEP:
		if ops, err = st.operands(in.GEP.Ptr, in.GEP.Index); err != nil {
			return err
		}
		res = out.NewGetElementPtr(st.typ(in.GEP.Ptr.Type.Elem()), ops[0], ops[1])
	case ir.InstrCall:
		callee, ok := st.funcs[in.Call.Callee]
		if !ok {
			return fmt.Errorf("call to undeclared %s", in.Call.Callee)
		}
		if ops, err = st.operands(in.Call.Args...); err != nil {
			return err
		}
		res = out.NewCall(callee, ops...)
	default:
		return fmt.Errorf("cannot lower %s", in.Kind)
	}
	if in.Dst != ir.NoValue && res != nil {
		st.values[in.Dst] = res
	}
	return nil
}

func (st *funcState) term(out *lir.Block, t *ir.Terminator) error {
	switch t.Kind {
	case ir.TermReturn:
		if !t.Return.HasValue {
			out.NewRet(nil)
			return nil
		}
		v, err := st.operand(t.Return.Value)
		if err != nil {
			return err
		}
		out.NewRet(v)
	case ir.TermBr:
		out.NewBr(st.blocks[t.Br.Target])
	case ir.TermCondBr:
		c, err := st.operand(t.CondBr.Cond)
		if err != nil {
			return err
		}
		out.NewCondBr(c, st.blocks[t.CondBr.Then], st.blocks[t.CondBr.Else])
	default:
		out.NewUnreachable()
	}
	return nil
}

// Emit renders m as LLVM assembly. Kernel annotations become the
// !nvvm.annotations named metadata.
func Emit(m *ir.Module) (string, error) {
	lm, err := Lower(m)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(lm.String())

	kernels := m.Kernels()
	if len(kernels) == 0 {
		return sb.String(), nil
	}
	refs := make([]string, len(kernels))
	for i := range kernels {
		refs[i] = fmt.Sprintf("!%d", i)
	}
	fmt.Fprintf(&sb, "\n!nvvm.annotations = !{%s}\n", strings.Join(refs, ", "))
	for i, name := range kernels {
		f := m.Func(name)
		params := make([]string, len(f.Params))
		for j, p := range f.Params {
			params[j] = p.Type.String()
		}
		fmt.Fprintf(&sb, "!%d = !{%s (%s)* @%s, !\"kernel\", i32 1}\n",
			i, f.Result, strings.Join(params, ", "), name)
	}
	return sb.String(), nil
}
