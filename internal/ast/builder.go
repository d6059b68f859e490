package ast

// Builder owns the arenas of one top-level unit. The session resets it after
// each definition, extern or expression has been compiled.
type Builder struct {
	Exprs *Exprs
}

func NewBuilder(capHint uint) *Builder {
	return &Builder{Exprs: NewExprs(capHint)}
}

// Reset drops every node of the previous unit.
func (b *Builder) Reset() {
	b.Exprs.Reset()
}
