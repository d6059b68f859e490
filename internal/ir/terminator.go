package ir

type TermKind uint8

const (
	TermNone TermKind = iota
	TermReturn
	TermBr
	TermCondBr
)

type Terminator struct {
	Kind TermKind

	Return ReturnTerm
	Br     BrTerm
	CondBr CondBrTerm
}

type ReturnTerm struct {
	HasValue bool
	Value    Operand
}

type BrTerm struct {
	Target BlockID
}

type CondBrTerm struct {
	Cond Operand
	Then BlockID
	Else BlockID
}

// Successors returns the blocks control may transfer to.
func (t *Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermBr:
		return []BlockID{t.Br.Target}
	case TermCondBr:
		return []BlockID{t.CondBr.Then, t.CondBr.Else}
	}
	return nil
}

func (t *Terminator) remap(m map[BlockID]BlockID) {
	switch t.Kind {
	case TermBr:
		t.Br.Target = m[t.Br.Target]
	case TermCondBr:
		t.CondBr.Then = m[t.CondBr.Then]
		t.CondBr.Else = m[t.CondBr.Else]
	}
}
