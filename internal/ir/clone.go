package ir

// Clone returns a deep copy of the module. Mutating the copy never affects m.
func (m *Module) Clone() *Module {
	if m == nil {
		return nil
	}
	out := &Module{
		Name:        m.Name,
		DataLayout:  m.DataLayout,
		Triple:      m.Triple,
		Funcs:       make([]*Func, len(m.Funcs)),
		Globals:     make([]Global, len(m.Globals)),
		Annotations: append([]Annotation(nil), m.Annotations...),
	}
	for i, f := range m.Funcs {
		out.Funcs[i] = f.Clone()
	}
	for i, g := range m.Globals {
		out.Globals[i] = Global{Name: g.Name, Data: append([]byte(nil), g.Data...)}
	}
	out.Reindex()
	return out
}

// Clone returns a deep copy of the function.
func (f *Func) Clone() *Func {
	out := &Func{
		Name:      f.Name,
		Params:    append([]Param(nil), f.Params...),
		Result:    f.Result,
		Extern:    f.Extern,
		NextValue: f.NextValue,
	}
	if f.Blocks != nil {
		out.Blocks = make([]Block, len(f.Blocks))
		for i := range f.Blocks {
			out.Blocks[i] = f.Blocks[i].clone()
		}
	}
	return out
}

func (b *Block) clone() Block {
	out := *b
	out.Instrs = make([]Instr, len(b.Instrs))
	for i := range b.Instrs {
		in := b.Instrs[i]
		in.Call.Args = append([]Operand(nil), in.Call.Args...)
		in.Phi.Incoming = append([]PhiIncoming(nil), in.Phi.Incoming...)
		out.Instrs[i] = in
	}
	return out
}
