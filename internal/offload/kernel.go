package offload

import (
	"fmt"
	"strings"

	"kalmap/internal/ir"
)

// ABI selects the kernel wrapper shape.
type ABI uint8

const (
	// ABIGrid indexes by ntid*ctaid+tid and guards idx < N.
	ABIGrid ABI = iota
	// ABILegacy indexes by tid alone, without a guard, in a single block.
	ABILegacy
)

func (a ABI) String() string {
	if a == ABILegacy {
		return "legacy"
	}
	return "grid"
}

// ParseABI accepts "grid" and "legacy".
func ParseABI(s string) (ABI, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "grid":
		return ABIGrid, nil
	case "legacy":
		return ABILegacy, nil
	}
	return ABIGrid, fmt.Errorf("invalid kernel abi: %q (expected: grid|legacy)", s)
}

// Kernel describes a synthesized wrapper.
type Kernel struct {
	Name   string // wrapper function name
	Callee string // mapped function
	Arity  int    // input vectors; the wrapper takes Arity+1 pointers
	N      int32  // elements per launch
	ABI    ABI    // the shape actually emitted
}

// SynthesizeKernel adds to m a void wrapper <callee>_kernel(double* arg0,
// ..., double* out) applying callee element-wise over n elements and
// annotates it as a kernel. The legacy ABI is honored only when n fits in
// one block of maxBlock threads; otherwise the grid form is emitted.
func SynthesizeKernel(m *ir.Module, callee string, n int32, abi ABI, maxBlock int32) (*Kernel, error) {
	f := m.Func(callee)
	if f == nil {
		return nil, fmt.Errorf("synthesize kernel for %s: %w", callee, ErrUnknownFunction)
	}
	if f.Result != ir.TypeF64 {
		return nil, fmt.Errorf("synthesize kernel for %s: %w", callee, ErrNotScalar)
	}
	for _, p := range f.Params {
		if p.Type != ir.TypeF64 {
			return nil, fmt.Errorf("synthesize kernel for %s: %w", callee, ErrNotScalar)
		}
	}
	if n <= 0 {
		return nil, fmt.Errorf("synthesize kernel for %s: element count %d", callee, n)
	}
	if abi == ABILegacy && n > maxBlock {
		abi = ABIGrid
	}

	name := callee + "_kernel"
	for i := 1; m.Func(name) != nil; i++ {
		name = fmt.Sprintf("%s_kernel%d", callee, i)
	}
	if m.Triple == "" {
		m.Triple = ir.TripleNVPTX64
	}

	arity := len(f.Params)
	params := make([]ir.Param, arity+1)
	for i := 0; i < arity; i++ {
		params[i] = ir.Param{Name: fmt.Sprintf("arg%d", i), Type: ir.TypePtrF64}
	}
	params[arity] = ir.Param{Name: "out", Type: ir.TypePtrF64}

	m.DeclareIntrinsic(ir.IntrinsicTidX)
	if abi == ABIGrid {
		m.DeclareIntrinsic(ir.IntrinsicNtidX)
		m.DeclareIntrinsic(ir.IntrinsicCtaidX)
	}

	kf := &ir.Func{Name: name, Params: params, Result: ir.TypeVoid}
	m.AddFunc(kf)
	b := ir.NewBuilder(kf)

	idx := b.Call(ir.IntrinsicTidX, ir.TypeI32, nil, "tid")
	var exit ir.BlockID
	if abi == ABIGrid {
		ntid := b.Call(ir.IntrinsicNtidX, ir.TypeI32, nil, "ntid")
		ctaid := b.Call(ir.IntrinsicCtaidX, ir.TypeI32, nil, "ctaid")
		base := b.Binary(ir.InstrMul, ntid, ctaid, "base")
		idx = b.Binary(ir.InstrAdd, base, idx, "idx")
		inBounds := b.ICmp(ir.PredULT, idx, ir.ConstI32(n), "inbounds")
		body := b.NewBlock("body")
		exit = b.NewBlock("exit")
		b.CondBr(inBounds, body, exit)
		b.SetBlock(body)
	}

	args := make([]ir.Operand, arity)
	for i := 0; i < arity; i++ {
		p := b.GEP(ir.ParamRef(i, ir.TypePtrF64), idx, fmt.Sprintf("in%d", i))
		args[i] = b.Load(p, fmt.Sprintf("x%d", i))
	}
	r := b.Call(callee, ir.TypeF64, args, "r")
	b.Store(r, b.GEP(ir.ParamRef(arity, ir.TypePtrF64), idx, "slot"))

	if abi == ABIGrid {
		b.Br(exit)
		b.SetBlock(exit)
	}
	b.RetVoid()

	m.Annotate(name, ir.AnnotationKernel, 1)
	return &Kernel{Name: name, Callee: callee, Arity: arity, N: n, ABI: abi}, nil
}
