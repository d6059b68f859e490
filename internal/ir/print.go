package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes the module in an LLVM-like textual form.
func Dump(w io.Writer, m *Module) error {
	if m == nil {
		return nil
	}
	p := &printer{w: w}
	p.printf("; ModuleID = '%s'\n", m.Name)
	if m.DataLayout != "" {
		p.printf("target datalayout = %q\n", m.DataLayout)
	}
	if m.Triple != "" {
		p.printf("target triple = %q\n", m.Triple)
	}
	p.printf("\n%%dvec = type { double*, i32 }\n")
	if len(m.Globals) > 0 {
		p.printf("\n")
		for _, g := range m.Globals {
			p.printf("@%s = private constant [%d x i8] c\"%s\"\n", g.Name, len(g.Data), escapeBytes(g.Data))
		}
	}
	for _, f := range m.Funcs {
		p.printf("\n")
		p.fn(f)
	}
	if kernels := m.Annotations; len(kernels) > 0 {
		refs := make([]string, len(kernels))
		for i := range kernels {
			refs[i] = fmt.Sprintf("!%d", i)
		}
		p.printf("\n!nvvm.annotations = !{%s}\n", strings.Join(refs, ", "))
		for i, a := range kernels {
			sig := "void"
			if f := m.Func(a.Func); f != nil {
				sig = signature(f)
			}
			p.printf("!%d = !{%s* @%s, !%q, i32 %d}\n", i, sig, a.Func, a.Kind, a.Value)
		}
	}
	return p.err
}

// DumpFunc writes a single function.
func DumpFunc(w io.Writer, f *Func) error {
	p := &printer{w: w}
	p.fn(f)
	return p.err
}

// String renders the module with Dump.
func (m *Module) String() string {
	var sb strings.Builder
	_ = Dump(&sb, m)
	return sb.String()
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) fn(f *Func) {
	params := make([]string, len(f.Params))
	for i, prm := range f.Params {
		if f.IsDeclaration() {
			params[i] = prm.Type.String()
		} else {
			params[i] = fmt.Sprintf("%s %%arg%d", prm.Type, i)
		}
	}
	if f.IsDeclaration() {
		p.printf("declare %s @%s(%s)\n", f.Result, f.Name, strings.Join(params, ", "))
		return
	}
	p.printf("define %s @%s(%s) {\n", f.Result, f.Name, strings.Join(params, ", "))
	for i := range f.Blocks {
		blk := &f.Blocks[i]
		if i > 0 {
			p.printf("\n")
		}
		p.printf("%s:\n", blk.Label())
		for j := range blk.Instrs {
			p.printf("  %s\n", formatInstr(f, &blk.Instrs[j]))
		}
		p.printf("  %s\n", formatTerm(f, &blk.Term))
	}
	p.printf("}\n")
}

func typed(o Operand) string {
	return o.Type.String() + " " + o.String()
}

func formatInstr(f *Func, in *Instr) string {
	var rhs string
	switch in.Kind {
	case InstrFAdd, InstrFSub, InstrFMul, InstrFDiv, InstrAdd, InstrMul:
		rhs = fmt.Sprintf("%s %s, %s", in.Kind, typed(in.Bin.L), in.Bin.R)
	case InstrFCmp, InstrICmp:
		rhs = fmt.Sprintf("%s %s %s, %s", in.Kind, in.Cmp.Pred, typed(in.Cmp.L), in.Cmp.R)
	case InstrUIToFP:
		rhs = fmt.Sprintf("uitofp %s to double", typed(in.Cast.X))
	case InstrAlloca:
		rhs = fmt.Sprintf("alloca %s, %s", in.Alloca.Elem, typed(in.Alloca.Count))
	case InstrLoad:
		rhs = fmt.Sprintf("load %s, %s", in.Type, typed(in.Load.Ptr))
	case InstrStore:
		rhs = fmt.Sprintf("store %s, %s", typed(in.Store.Val), typed(in.Store.Ptr))
	case InstrGEP:
		rhs = fmt.Sprintf("getelementptr %s, %s, %s", in.GEP.Ptr.Type.Elem(), typed(in.GEP.Ptr), typed(in.GEP.Index))
	case InstrCall:
		args := make([]string, len(in.Call.Args))
		for i, a := range in.Call.Args {
			args[i] = typed(a)
		}
		rhs = fmt.Sprintf("call %s @%s(%s)", in.Type, in.Call.Callee, strings.Join(args, ", "))
	case InstrPhi:
		inc := make([]string, len(in.Phi.Incoming))
		for i, e := range in.Phi.Incoming {
			label := fmt.Sprintf("bb%d", e.Block)
			if b := f.Block(e.Block); b != nil {
				label = b.Label()
			}
			inc[i] = fmt.Sprintf("[ %s, %%%s ]", e.Value, label)
		}
		rhs = fmt.Sprintf("phi %s %s", in.Type, strings.Join(inc, ", "))
	default:
		rhs = fmt.Sprintf("<unknown %d>", in.Kind)
	}
	if in.Dst == NoValue {
		return rhs
	}
	line := fmt.Sprintf("%%%d = %s", in.Dst, rhs)
	if in.Name != "" {
		line += " ; " + in.Name
	}
	return line
}

func formatTerm(f *Func, t *Terminator) string {
	label := func(id BlockID) string {
		if b := f.Block(id); b != nil {
			return "%" + b.Label()
		}
		return fmt.Sprintf("%%bb%d", id)
	}
	switch t.Kind {
	case TermReturn:
		if !t.Return.HasValue {
			return "ret void"
		}
		return "ret " + typed(t.Return.Value)
	case TermBr:
		return "br label " + label(t.Br.Target)
	case TermCondBr:
		return fmt.Sprintf("br %s, label %s, label %s", typed(t.CondBr.Cond), label(t.CondBr.Then), label(t.CondBr.Else))
	}
	return "<unterminated>"
}

func signature(f *Func) string {
	params := make([]string, len(f.Params))
	for i, prm := range f.Params {
		params[i] = prm.Type.String()
	}
	return fmt.Sprintf("%s (%s)", f.Result, strings.Join(params, ", "))
}

func escapeBytes(data []byte) string {
	var sb strings.Builder
	for _, c := range data {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "\\%02X", c)
	}
	return sb.String()
}
