package vm

import "kalmap/internal/ir"

// Frame represents a function activation record on the call stack.
type Frame struct {
	Func   *ir.Func
	BB     ir.BlockID
	Prev   ir.BlockID // block we came from, for phi selection
	IP     int
	Values []Value
	Args   []Value
	Allocs []Pointer // stack objects released on return
	RetDst ir.ValueID
}

// NewFrame creates a new frame for executing fn with args.
func NewFrame(fn *ir.Func, args []Value) *Frame {
	return &Frame{
		Func:   fn,
		BB:     ir.Entry,
		Values: make([]Value, fn.NextValue+1),
		Args:   args,
	}
}

// CurrentBlock returns the current basic block being executed.
func (f *Frame) CurrentBlock() *ir.Block {
	return f.Func.Block(f.BB)
}

// AtTerminator returns true if the IP is past all instructions.
func (f *Frame) AtTerminator() bool {
	block := f.CurrentBlock()
	if block == nil {
		return true
	}
	return f.IP >= len(block.Instrs)
}
