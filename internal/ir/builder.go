package ir

// Builder appends instructions to one function, at the end of the current
// block.
type Builder struct {
	fn  *Func
	cur BlockID
}

// NewBuilder turns fn into a definition with an empty entry block and
// positions the builder there.
func NewBuilder(fn *Func) *Builder {
	fn.Extern = false
	if len(fn.Blocks) == 0 {
		fn.Blocks = append(fn.Blocks, Block{ID: Entry, Name: "entry"})
	}
	return &Builder{fn: fn, cur: Entry}
}

func (b *Builder) Func() *Func { return b.fn }

// Block returns the current insertion block.
func (b *Builder) Block() BlockID { return b.cur }

// NewBlock appends an empty block without moving the insertion point.
func (b *Builder) NewBlock(name string) BlockID {
	id := BlockID(len(b.fn.Blocks))
	b.fn.Blocks = append(b.fn.Blocks, Block{ID: id, Name: name})
	return id
}

func (b *Builder) SetBlock(id BlockID) { b.cur = id }

// Terminated reports whether the current block already has a terminator.
func (b *Builder) Terminated() bool {
	return b.fn.Blocks[b.cur].Terminated()
}

func (b *Builder) emit(in Instr) Operand {
	if in.Type != TypeVoid {
		in.Dst = b.fn.newValue()
	}
	blk := &b.fn.Blocks[b.cur]
	blk.Instrs = append(blk.Instrs, in)
	return in.Result()
}

// Binary emits an arithmetic instruction; the result has the type of l.
func (b *Builder) Binary(kind InstrKind, l, r Operand, name string) Operand {
	return b.emit(Instr{Kind: kind, Type: l.Type, Name: name, Bin: BinInstr{L: l, R: r}})
}

func (b *Builder) FCmp(pred Pred, l, r Operand, name string) Operand {
	return b.emit(Instr{Kind: InstrFCmp, Type: TypeI1, Name: name, Cmp: CmpInstr{Pred: pred, L: l, R: r}})
}

func (b *Builder) ICmp(pred Pred, l, r Operand, name string) Operand {
	return b.emit(Instr{Kind: InstrICmp, Type: TypeI1, Name: name, Cmp: CmpInstr{Pred: pred, L: l, R: r}})
}

func (b *Builder) UIToFP(x Operand, name string) Operand {
	return b.emit(Instr{Kind: InstrUIToFP, Type: TypeF64, Name: name, Cast: CastInstr{X: x}})
}

// EntryAlloca reserves count slots of elem in the entry block after any
// allocas already there, regardless of the insertion point.
func (b *Builder) EntryAlloca(elem Type, count int32, name string) Operand {
	in := Instr{
		Kind:   InstrAlloca,
		Dst:    b.fn.newValue(),
		Type:   PtrTo(elem),
		Name:   name,
		Alloca: AllocaInstr{Elem: elem, Count: ConstI32(count)},
	}
	entry := &b.fn.Blocks[Entry]
	pos := 0
	for pos < len(entry.Instrs) && entry.Instrs[pos].Kind == InstrAlloca {
		pos++
	}
	entry.Instrs = append(entry.Instrs, Instr{})
	copy(entry.Instrs[pos+1:], entry.Instrs[pos:])
	entry.Instrs[pos] = in
	return in.Result()
}

func (b *Builder) Load(ptr Operand, name string) Operand {
	return b.emit(Instr{Kind: InstrLoad, Type: ptr.Type.Elem(), Name: name, Load: LoadInstr{Ptr: ptr}})
}

func (b *Builder) Store(val, ptr Operand) {
	b.emit(Instr{Kind: InstrStore, Type: TypeVoid, Store: StoreInstr{Val: val, Ptr: ptr}})
}

func (b *Builder) GEP(ptr, index Operand, name string) Operand {
	return b.emit(Instr{Kind: InstrGEP, Type: ptr.Type, Name: name, GEP: GEPInstr{Ptr: ptr, Index: index}})
}

// Call emits a call; for void callees the returned operand is invalid.
func (b *Builder) Call(callee string, result Type, args []Operand, name string) Operand {
	if result == TypeVoid {
		name = ""
	}
	return b.emit(Instr{Kind: InstrCall, Type: result, Name: name, Call: CallInstr{Callee: callee, Args: args}})
}

func (b *Builder) Phi(t Type, incoming []PhiIncoming, name string) Operand {
	return b.emit(Instr{Kind: InstrPhi, Type: t, Name: name, Phi: PhiInstr{Incoming: incoming}})
}

func (b *Builder) Ret(v Operand) {
	b.fn.Blocks[b.cur].Term = Terminator{Kind: TermReturn, Return: ReturnTerm{HasValue: true, Value: v}}
}

func (b *Builder) RetVoid() {
	b.fn.Blocks[b.cur].Term = Terminator{Kind: TermReturn}
}

func (b *Builder) Br(target BlockID) {
	b.fn.Blocks[b.cur].Term = Terminator{Kind: TermBr, Br: BrTerm{Target: target}}
}

func (b *Builder) CondBr(cond Operand, then, els BlockID) {
	b.fn.Blocks[b.cur].Term = Terminator{Kind: TermCondBr, CondBr: CondBrTerm{Cond: cond, Then: then, Else: els}}
}
