package vm

import (
	"fmt"
	"strings"
)

// PanicCode identifies the type of VM panic.
type PanicCode int

// Stable panic codes - do not change values.
const (
	PanicTypeMismatch     PanicCode = 1003 // VM1003: type mismatch
	PanicOutOfBounds      PanicCode = 1004 // VM1004: out of bounds
	PanicUseAfterFree     PanicCode = 1005 // VM1005: access to freed memory
	PanicUnresolvedExtern PanicCode = 1006 // VM1006: extern without a native
	PanicStackOverflow    PanicCode = 1007 // VM1007: call depth limit
	PanicNullPointer      PanicCode = 1008 // VM1008: null dereference
	PanicNative           PanicCode = 1009 // VM1009: native routine failed
	PanicUnimplemented    PanicCode = 1999 // VM1999: unimplemented opcode/terminator
)

// String returns the code as "VM1001" format.
func (c PanicCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// BacktraceFrame represents one frame in the panic backtrace.
type BacktraceFrame struct {
	FuncName string
	Block    string
}

// VMError represents a runtime panic in the VM. Cause carries the error a
// native routine failed with, if any.
type VMError struct {
	Code      PanicCode
	Message   string
	Backtrace []BacktraceFrame // Stack frames from top to bottom
	Cause     error
}

// Error implements the error interface.
func (p *VMError) Error() string {
	return fmt.Sprintf("panic %s: %s", p.Code, p.Message)
}

func (p *VMError) Unwrap() error { return p.Cause }

// FormatTrace renders the panic with its backtrace.
func (p *VMError) FormatTrace() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "panic %s: %s\n", p.Code, p.Message)
	if len(p.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, frame := range p.Backtrace {
			fmt.Fprintf(&sb, "  %d: %s at %%%s\n", i, frame.FuncName, frame.Block)
		}
	}
	return sb.String()
}

// Errorf builds a VMError for natives; the VM fills in the backtrace.
func Errorf(code PanicCode, format string, args ...any) *VMError {
	return &VMError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap turns a native failure into a VMError that unwraps to err.
func Wrap(err error) *VMError {
	return &VMError{Code: PanicNative, Message: err.Error(), Cause: err}
}

func (vm *VM) makeError(code PanicCode, msg string) *VMError {
	e := &VMError{Code: code, Message: msg}
	vm.fillBacktrace(e)
	return e
}

// maxBacktrace caps the frames recorded for deep recursion.
const maxBacktrace = 64

func (vm *VM) fillBacktrace(e *VMError) {
	if e.Backtrace != nil {
		return
	}
	n := min(len(vm.stack), maxBacktrace)
	e.Backtrace = make([]BacktraceFrame, n)
	for i := 0; i < n; i++ {
		frame := &vm.stack[len(vm.stack)-1-i]
		label := "?"
		if blk := frame.Func.Block(frame.BB); blk != nil {
			label = blk.Label()
		}
		e.Backtrace[i] = BacktraceFrame{FuncName: frame.Func.Name, Block: label}
	}
}
