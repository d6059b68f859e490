package ir

// InstrKind enumerates IR instruction kinds.
type InstrKind uint8

const (
	// InstrFAdd adds two doubles.
	InstrFAdd InstrKind = iota + 1
	// InstrFSub subtracts two doubles.
	InstrFSub
	// InstrFMul multiplies two doubles.
	InstrFMul
	// InstrFDiv divides two doubles.
	InstrFDiv
	// InstrAdd adds two i32 values.
	InstrAdd
	// InstrMul multiplies two i32 values.
	InstrMul
	// InstrFCmp compares doubles and yields i1.
	InstrFCmp
	// InstrICmp compares i32 values and yields i1.
	InstrICmp
	// InstrUIToFP converts an unsigned i1 or i32 to double.
	InstrUIToFP
	// InstrAlloca reserves stack slots in the entry block.
	InstrAlloca
	// InstrLoad reads through a pointer.
	InstrLoad
	// InstrStore writes through a pointer.
	InstrStore
	// InstrGEP offsets a pointer by an element index.
	InstrGEP
	// InstrCall calls a function by name.
	InstrCall
	// InstrPhi selects a value by predecessor block.
	InstrPhi
)

func (k InstrKind) String() string {
	switch k {
	case InstrFAdd:
		return "fadd"
	case InstrFSub:
		return "fsub"
	case InstrFMul:
		return "fmul"
	case InstrFDiv:
		return "fdiv"
	case InstrAdd:
		return "add"
	case InstrMul:
		return "mul"
	case InstrFCmp:
		return "fcmp"
	case InstrICmp:
		return "icmp"
	case InstrUIToFP:
		return "uitofp"
	case InstrAlloca:
		return "alloca"
	case InstrLoad:
		return "load"
	case InstrStore:
		return "store"
	case InstrGEP:
		return "getelementptr"
	case InstrCall:
		return "call"
	case InstrPhi:
		return "phi"
	}
	return "?"
}

// IsBinary reports whether k takes two arithmetic operands.
func (k InstrKind) IsBinary() bool {
	return k >= InstrFAdd && k <= InstrMul
}

// Pred is a comparison predicate.
type Pred uint8

const (
	// PredULT is unordered-or-less-than for doubles, unsigned less-than for ints.
	PredULT Pred = iota + 1
	// PredUGT is unordered-or-greater-than for doubles.
	PredUGT
	// PredONE is ordered-and-not-equal for doubles.
	PredONE
)

func (p Pred) String() string {
	switch p {
	case PredULT:
		return "ult"
	case PredUGT:
		return "ugt"
	case PredONE:
		return "one"
	}
	return "?"
}

// Instr is one IR instruction. Dst is NoValue for instructions without a
// result (store, calls returning void).
type Instr struct {
	Kind InstrKind
	Dst  ValueID
	Type Type
	Name string

	Bin    BinInstr
	Cmp    CmpInstr
	Cast   CastInstr
	Alloca AllocaInstr
	Load   LoadInstr
	Store  StoreInstr
	GEP    GEPInstr
	Call   CallInstr
	Phi    PhiInstr
}

type BinInstr struct {
	L Operand
	R Operand
}

type CmpInstr struct {
	Pred Pred
	L    Operand
	R    Operand
}

type CastInstr struct {
	X Operand
}

// AllocaInstr reserves Count slots of Elem. Count is a constant i32.
type AllocaInstr struct {
	Elem  Type
	Count Operand
}

type LoadInstr struct {
	Ptr Operand
}

type StoreInstr struct {
	Val Operand
	Ptr Operand
}

type GEPInstr struct {
	Ptr   Operand
	Index Operand
}

type CallInstr struct {
	Callee string
	Args   []Operand
}

type PhiIncoming struct {
	Value Operand
	Block BlockID
}

type PhiInstr struct {
	Incoming []PhiIncoming
}

// Result returns the operand produced by the instruction, or an invalid
// operand when there is none.
func (in *Instr) Result() Operand {
	if in.Dst == NoValue {
		return Operand{}
	}
	return ValueRef(in.Dst, in.Type)
}

// Operands returns pointers to every operand the instruction reads.
func (in *Instr) Operands() []*Operand {
	switch in.Kind {
	case InstrFAdd, InstrFSub, InstrFMul, InstrFDiv, InstrAdd, InstrMul:
		return []*Operand{&in.Bin.L, &in.Bin.R}
	case InstrFCmp, InstrICmp:
		return []*Operand{&in.Cmp.L, &in.Cmp.R}
	case InstrUIToFP:
		return []*Operand{&in.Cast.X}
	case InstrAlloca:
		return []*Operand{&in.Alloca.Count}
	case InstrLoad:
		return []*Operand{&in.Load.Ptr}
	case InstrStore:
		return []*Operand{&in.Store.Val, &in.Store.Ptr}
	case InstrGEP:
		return []*Operand{&in.GEP.Ptr, &in.GEP.Index}
	case InstrCall:
		out := make([]*Operand, len(in.Call.Args))
		for i := range in.Call.Args {
			out[i] = &in.Call.Args[i]
		}
		return out
	case InstrPhi:
		out := make([]*Operand, len(in.Phi.Incoming))
		for i := range in.Phi.Incoming {
			out[i] = &in.Phi.Incoming[i].Value
		}
		return out
	}
	return nil
}
