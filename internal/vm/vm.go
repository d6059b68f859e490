package vm

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"kalmap/internal/ir"
)

// DefaultMaxDepth bounds the call stack.
const DefaultMaxDepth = 10000

// NativeFunc implements an external function. Args follow the IR
// signature; the returned value is ignored for void functions.
type NativeFunc func(ctx context.Context, vm *VM, args []Value) (Value, *VMError)

// Options configures VM execution.
type Options struct {
	MaxDepth int       // 0 means DefaultMaxDepth
	Stdout   io.Writer // nil means os.Stdout
}

// VM is a direct IR interpreter. The module may grow between runs; the VM
// always resolves functions by name at call time.
type VM struct {
	M    *ir.Module
	Heap *Heap

	natives map[string]NativeFunc
	globals map[string]Pointer
	stack   []Frame
	opts    Options
	ctx     context.Context
	steps   uint64
}

// New creates a new VM for executing functions of m.
func New(m *ir.Module, opts Options) *VM {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &VM{
		M:       m,
		Heap:    newHeap(),
		natives: make(map[string]NativeFunc),
		globals: make(map[string]Pointer),
		opts:    opts,
		ctx:     context.Background(),
	}
}

// Register binds an external function name to a native implementation.
func (vm *VM) Register(name string, fn NativeFunc) {
	vm.natives[name] = fn
}

// HasNative reports whether name resolves to a native.
func (vm *VM) HasNative(name string) bool {
	_, ok := vm.natives[name]
	return ok
}

// Stdout is where natives write program output.
func (vm *VM) Stdout() io.Writer { return vm.opts.Stdout }

// Depth returns the current call depth.
func (vm *VM) Depth() int { return len(vm.stack) }

// Run calls the function name with args and runs until it returns.
// Returns a VMError if execution fails; the stack is unwound either way.
func (vm *VM) Run(ctx context.Context, name string, args ...Value) (result Value, vmErr *VMError) {
	fn := vm.M.Func(name)
	if fn == nil {
		return Value{}, vm.makeError(PanicUnresolvedExtern, fmt.Sprintf("unknown function %s", name))
	}
	if len(args) != len(fn.Params) {
		return Value{}, vm.makeError(PanicTypeMismatch, fmt.Sprintf("%s takes %d arguments, got %d", name, len(fn.Params), len(args)))
	}
	prevCtx := vm.ctx
	vm.ctx = ctx
	base := len(vm.stack)
	defer func() {
		vm.ctx = prevCtx
		for len(vm.stack) > base {
			vm.popFrame()
		}
	}()

	if fn.IsDeclaration() {
		return vm.callNative(fn, args)
	}
	if vmErr := vm.pushFrame(fn, args, ir.NoValue); vmErr != nil {
		return Value{}, vmErr
	}
	for len(vm.stack) > base {
		ret, done, vmErr := vm.step(base)
		if vmErr != nil {
			vm.fillBacktrace(vmErr)
			return Value{}, vmErr
		}
		if done {
			return ret, nil
		}
	}
	return Value{}, nil
}

func (vm *VM) pushFrame(fn *ir.Func, args []Value, dst ir.ValueID) *VMError {
	if len(vm.stack) >= vm.opts.MaxDepth {
		return vm.makeError(PanicStackOverflow, fmt.Sprintf("call depth limit %d exceeded calling %s", vm.opts.MaxDepth, fn.Name))
	}
	frame := NewFrame(fn, args)
	frame.RetDst = dst
	vm.stack = append(vm.stack, *frame)
	top := &vm.stack[len(vm.stack)-1]
	return vm.enterBlock(top, ir.Entry)
}

func (vm *VM) popFrame() {
	top := &vm.stack[len(vm.stack)-1]
	for _, p := range top.Allocs {
		vm.Heap.release(p)
	}
	vm.stack = vm.stack[:len(vm.stack)-1]
}

// enterBlock moves frame to target and evaluates its phis simultaneously.
func (vm *VM) enterBlock(frame *Frame, target ir.BlockID) *VMError {
	blk := frame.Func.Block(target)
	if blk == nil {
		return vm.makeError(PanicUnimplemented, fmt.Sprintf("invalid block id: %d", target))
	}
	frame.Prev, frame.BB, frame.IP = frame.BB, target, 0

	n := 0
	for n < len(blk.Instrs) && blk.Instrs[n].Kind == ir.InstrPhi {
		n++
	}
	if n == 0 {
		return nil
	}
	vals := make([]Value, n)
	for i := 0; i < n; i++ {
		in := &blk.Instrs[i]
		found := false
		for _, inc := range in.Phi.Incoming {
			if inc.Block == frame.Prev {
				vals[i] = vm.operand(frame, inc.Value)
				found = true
				break
			}
		}
		if !found {
			return vm.makeError(PanicUnimplemented, fmt.Sprintf("phi in %s has no value for predecessor bb%d", blk.Label(), frame.Prev))
		}
	}
	for i := 0; i < n; i++ {
		frame.Values[blk.Instrs[i].Dst] = vals[i]
	}
	frame.IP = n
	return nil
}

// step executes one instruction or terminator of the top frame. done is
// set when the frame at depth base returns.
func (vm *VM) step(base int) (ret Value, done bool, vmErr *VMError) {
	vm.steps++
	if vm.steps&0xfff == 0 && vm.ctx != nil {
		if err := vm.ctx.Err(); err != nil {
			return Value{}, false, &VMError{Code: PanicNative, Message: "interrupted: " + err.Error(), Cause: err}
		}
	}
	frame := &vm.stack[len(vm.stack)-1]
	if frame.AtTerminator() {
		return vm.execTerminator(frame, base)
	}
	in := &frame.CurrentBlock().Instrs[frame.IP]
	pushed, vmErr := vm.execInstr(frame, in)
	if vmErr != nil {
		return Value{}, false, vmErr
	}
	if !pushed {
		frame.IP++
	}
	return Value{}, false, nil
}

func (vm *VM) execTerminator(frame *Frame, base int) (Value, bool, *VMError) {
	term := &frame.CurrentBlock().Term
	switch term.Kind {
	case ir.TermBr:
		return Value{}, false, vm.enterBlock(frame, term.Br.Target)
	case ir.TermCondBr:
		c := vm.operand(frame, term.CondBr.Cond)
		target := term.CondBr.Else
		if c.I != 0 {
			target = term.CondBr.Then
		}
		return Value{}, false, vm.enterBlock(frame, target)
	case ir.TermReturn:
		var ret Value
		if term.Return.HasValue {
			ret = vm.operand(frame, term.Return.Value)
		}
		dst := frame.RetDst
		vm.popFrame()
		if len(vm.stack) == base {
			return ret, true, nil
		}
		caller := &vm.stack[len(vm.stack)-1]
		if dst != ir.NoValue {
			caller.Values[dst] = ret
		}
		caller.IP++
		return Value{}, false, nil
	}
	return Value{}, false, vm.makeError(PanicUnimplemented, fmt.Sprintf("unterminated block %s", frame.CurrentBlock().Label()))
}

func (vm *VM) operand(frame *Frame, o ir.Operand) Value {
	switch o.Kind {
	case ir.OperandConst:
		switch o.Type {
		case ir.TypeF64:
			return Float(o.F)
		case ir.TypeI1:
			return Bool(o.I != 0)
		case ir.TypeI32:
			return Int(int32(o.I))
		}
	case ir.OperandValue:
		if int(o.Value) < len(frame.Values) {
			return frame.Values[o.Value]
		}
	case ir.OperandParam:
		if o.Param < len(frame.Args) {
			return frame.Args[o.Param]
		}
	case ir.OperandGlobal:
		return Ptr(vm.global(o.Global))
	}
	return zeroOf(o.Type)
}

func (vm *VM) global(name string) Pointer {
	if p, ok := vm.globals[name]; ok {
		return p
	}
	g := vm.M.Global(name)
	if g == nil {
		return Pointer{}
	}
	p := vm.Heap.alloc(&Object{Kind: OKBytes, Bytes: append([]byte(nil), g.Data...)})
	vm.globals[name] = p
	return p
}

// execInstr runs one non-phi instruction. pushed reports that a callee frame
// was entered; the caller resumes after it returns.
func (vm *VM) execInstr(frame *Frame, in *ir.Instr) (pushed bool, vmErr *VMError) {
	set := func(v Value) {
		if in.Dst != ir.NoValue {
			frame.Values[in.Dst] = v
		}
	}
	switch in.Kind {
	case ir.InstrFAdd, ir.InstrFSub, ir.InstrFMul, ir.InstrFDiv:
		l, r := vm.operand(frame, in.Bin.L).F, vm.operand(frame, in.Bin.R).F
		set(Float(evalFloat(in.Kind, l, r)))
	case ir.InstrAdd, ir.InstrMul:
		l, r := int32(vm.operand(frame, in.Bin.L).I), int32(vm.operand(frame, in.Bin.R).I)
		if in.Kind == ir.InstrAdd {
			set(Int(l + r))
		} else {
			set(Int(l * r))
		}
	case ir.InstrFCmp:
		l, r := vm.operand(frame, in.Cmp.L).F, vm.operand(frame, in.Cmp.R).F
		set(Bool(evalFCmp(in.Cmp.Pred, l, r)))
	case ir.InstrICmp:
		l, r := uint32(vm.operand(frame, in.Cmp.L).I), uint32(vm.operand(frame, in.Cmp.R).I)
		set(Bool(l < r))
	case ir.InstrUIToFP:
		x := vm.operand(frame, in.Cast.X)
		set(Float(float64(uint32(x.I))))
	case ir.InstrAlloca:
		n := int(in.Alloca.Count.I)
		obj := &Object{Stack: true}
		if in.Alloca.Elem == ir.TypeVec {
			obj.Kind = OKCells
			obj.Cells = make([]Value, n)
		} else {
			obj.Kind = OKFloats
			obj.Floats = make([]float64, n)
		}
		p := vm.Heap.alloc(obj)
		frame.Allocs = append(frame.Allocs, p)
		set(Ptr(p))
	case ir.InstrLoad:
		p := vm.operand(frame, in.Load.Ptr).Ptr
		if in.Load.Ptr.Type == ir.TypePtrVec {
			v, err := vm.Heap.LoadCell(p)
			if err != nil {
				return false, vm.located(err)
			}
			set(v)
			break
		}
		f, err := vm.Heap.loadFloat(p)
		if err != nil {
			return false, vm.located(err)
		}
		set(Float(f))
	case ir.InstrStore:
		p := vm.operand(frame, in.Store.Ptr).Ptr
		v := vm.operand(frame, in.Store.Val)
		var err *VMError
		if in.Store.Ptr.Type == ir.TypePtrVec {
			err = vm.Heap.StoreCell(p, v)
		} else {
			err = vm.Heap.storeFloat(p, v.F)
		}
		if err != nil {
			return false, vm.located(err)
		}
	case ir.InstrGEP:
		p := vm.operand(frame, in.GEP.Ptr).Ptr
		idx := vm.operand(frame, in.GEP.Index).I
		p.Off += int(idx)
		set(Ptr(p))
	case ir.InstrCall:
		return vm.execCall(frame, in)
	default:
		return false, vm.makeError(PanicUnimplemented, fmt.Sprintf("unimplemented instruction %s", in.Kind))
	}
	return false, nil
}

func (vm *VM) execCall(frame *Frame, in *ir.Instr) (bool, *VMError) {
	callee := vm.M.Func(in.Call.Callee)
	if callee == nil {
		return false, vm.makeError(PanicUnresolvedExtern, fmt.Sprintf("unknown function %s", in.Call.Callee))
	}
	args := make([]Value, len(in.Call.Args))
	for i, a := range in.Call.Args {
		args[i] = vm.operand(frame, a)
	}
	if callee.IsDeclaration() {
		ret, vmErr := vm.callNative(callee, args)
		if vmErr != nil {
			return false, vmErr
		}
		if in.Dst != ir.NoValue {
			frame.Values[in.Dst] = ret
		}
		return false, nil
	}
	if vmErr := vm.pushFrame(callee, args, in.Dst); vmErr != nil {
		return false, vmErr
	}
	return true, nil
}

func (vm *VM) callNative(fn *ir.Func, args []Value) (Value, *VMError) {
	native, ok := vm.natives[fn.Name]
	if !ok {
		return Value{}, vm.makeError(PanicUnresolvedExtern, fmt.Sprintf("no native implementation for extern %s", fn.Name))
	}
	ret, vmErr := native(vm.ctx, vm, args)
	if vmErr != nil {
		return Value{}, vm.located(vmErr)
	}
	if fn.Result == ir.TypeVoid {
		return Value{}, nil
	}
	if ret.Kind == VKInvalid {
		ret = zeroOf(fn.Result)
	}
	return ret, nil
}

func (vm *VM) located(e *VMError) *VMError {
	vm.fillBacktrace(e)
	return e
}

func evalFloat(kind ir.InstrKind, l, r float64) float64 {
	switch kind {
	case ir.InstrFAdd:
		return l + r
	case ir.InstrFSub:
		return l - r
	case ir.InstrFMul:
		return l * r
	case ir.InstrFDiv:
		return l / r
	}
	return math.NaN()
}

// evalFCmp follows LLVM predicate semantics: u* predicates are true when
// either side is NaN, o* predicates are false.
func evalFCmp(pred ir.Pred, l, r float64) bool {
	unordered := math.IsNaN(l) || math.IsNaN(r)
	switch pred {
	case ir.PredULT:
		return unordered || l < r
	case ir.PredUGT:
		return unordered || l > r
	case ir.PredONE:
		return !unordered && l != r
	}
	return false
}
