package ir

import "strconv"

type Param struct {
	Name string
	Type Type
}

// Func is a function definition, or a declaration when Extern is set.
type Func struct {
	Name   string
	Params []Param
	Result Type
	Extern bool
	Blocks []Block

	NextValue ValueID
}

// Entry is always block 0.
const Entry BlockID = 0

// IsDeclaration reports whether the function has no body.
func (f *Func) IsDeclaration() bool {
	return f.Extern || len(f.Blocks) == 0
}

// ParamTypes returns the parameter types in order.
func (f *Func) ParamTypes() []Type {
	out := make([]Type, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Type
	}
	return out
}

// Block returns the block by id or nil.
func (f *Func) Block(id BlockID) *Block {
	if int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// SameSignature reports whether f and g agree on parameter and result types.
func (f *Func) SameSignature(params []Type, result Type) bool {
	if f.Result != result || len(f.Params) != len(params) {
		return false
	}
	for i, p := range f.Params {
		if p.Type != params[i] {
			return false
		}
	}
	return true
}

func (f *Func) newValue() ValueID {
	f.NextValue++
	return f.NextValue
}

// Predecessors maps every block to the blocks that branch to it.
func (f *Func) Predecessors() [][]BlockID {
	preds := make([][]BlockID, len(f.Blocks))
	for i := range f.Blocks {
		for _, s := range f.Blocks[i].Term.Successors() {
			if int(s) < len(preds) {
				preds[s] = append(preds[s], BlockID(i))
			}
		}
	}
	return preds
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
