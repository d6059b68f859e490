package ir

// BlockID indexes Func.Blocks. The entry block is 0.
type BlockID uint32

type Block struct {
	ID     BlockID
	Name   string
	Instrs []Instr
	Term   Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// Label is the name used when printing the block.
func (b *Block) Label() string {
	if b.Name == "" {
		return "bb" + itoa(uint64(b.ID))
	}
	return b.Name + itoa(uint64(b.ID))
}
