// Package rtlib implements the library routines compiled programs can
// declare with extern: character and number output, vector printing,
// vector allocation and random fill.
package rtlib

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"kalmap/internal/irgen"
	"kalmap/internal/vm"
)

// DefaultMaxVectorLen bounds vector_malloc requests.
const DefaultMaxVectorLen = 1 << 26

type Options struct {
	Seed         uint64
	MaxVectorLen int // 0 means DefaultMaxVectorLen
}

// Library holds the state shared by the routines of one VM.
type Library struct {
	opts Options
	rng  *rand.Rand
}

// Register installs every routine into m.
func Register(m *vm.VM, opts Options) *Library {
	if opts.MaxVectorLen <= 0 {
		opts.MaxVectorLen = DefaultMaxVectorLen
	}
	lib := &Library{opts: opts, rng: rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))}
	m.Register("putchard", lib.putchard)
	m.Register("printd", lib.printd)
	m.Register("printVector", lib.printVector)
	m.Register("randVector", lib.randVector)
	m.Register(irgen.FnVectorMalloc, lib.vectorMalloc)
	m.Register(irgen.FnVectorFree, lib.vectorFree)
	return lib
}

func argFloat(args []vm.Value, i int) float64 {
	if i < len(args) {
		return args[i].F
	}
	return 0
}

// putchard writes the low byte of x and returns 0.
func (l *Library) putchard(_ context.Context, m *vm.VM, args []vm.Value) (vm.Value, *vm.VMError) {
	if _, err := m.Stdout().Write([]byte{byte(int64(argFloat(args, 0)))}); err != nil {
		return vm.Value{}, vm.Wrap(err)
	}
	return vm.Float(0), nil
}

// printd prints x as "%f\n" and returns 0.
func (l *Library) printd(_ context.Context, m *vm.VM, args []vm.Value) (vm.Value, *vm.VMError) {
	if _, err := fmt.Fprintf(m.Stdout(), "%f\n", argFloat(args, 0)); err != nil {
		return vm.Value{}, vm.Wrap(err)
	}
	return vm.Float(0), nil
}

// printVector prints elements as "%0.2f " with a newline after every tenth.
func (l *Library) printVector(_ context.Context, m *vm.VM, args []vm.Value) (vm.Value, *vm.VMError) {
	if len(args) != 1 || args[0].Kind != vm.VKVec {
		return vm.Value{}, vm.Errorf(vm.PanicTypeMismatch, "printVector expects one vector")
	}
	data, vmErr := m.Heap.VectorData(args[0].Vec)
	if vmErr != nil {
		return vm.Value{}, vmErr
	}
	w := m.Stdout()
	for i, x := range data {
		if _, err := fmt.Fprintf(w, "%0.2f ", x); err != nil {
			return vm.Value{}, vm.Wrap(err)
		}
		if i%10 == 9 {
			if _, err := fmt.Fprintln(w); err != nil {
				return vm.Value{}, vm.Wrap(err)
			}
		}
	}
	return vm.Float(0), nil
}

// randVector fills v with uniform values in [0, range].
func (l *Library) randVector(_ context.Context, m *vm.VM, args []vm.Value) (vm.Value, *vm.VMError) {
	if len(args) != 2 || args[0].Kind != vm.VKVec {
		return vm.Value{}, vm.Errorf(vm.PanicTypeMismatch, "randVector expects a vector and a range")
	}
	data, vmErr := m.Heap.VectorData(args[0].Vec)
	if vmErr != nil {
		return vm.Value{}, vmErr
	}
	r := args[1].F
	for i := range data {
		data[i] = r * l.rng.Float64()
	}
	return vm.Float(0), nil
}

// vectorMalloc stores a fresh zeroed vector of trunc(len) elements in *v.
func (l *Library) vectorMalloc(_ context.Context, m *vm.VM, args []vm.Value) (vm.Value, *vm.VMError) {
	if len(args) != 2 || args[0].Kind != vm.VKPtr {
		return vm.Value{}, vm.Errorf(vm.PanicTypeMismatch, "%s expects a vector slot and a length", irgen.FnVectorMalloc)
	}
	length := args[1].F
	if math.IsNaN(length) || length < 0 || length > float64(l.opts.MaxVectorLen) {
		return vm.Value{}, vm.Errorf(vm.PanicOutOfBounds, "vector length %g outside [0, %d]", length, l.opts.MaxVectorLen)
	}
	n := int32(length)
	vec := vm.Vector{Len: n}
	if n > 0 {
		vec.Data = m.Heap.AllocFloats(int(n))
	}
	if vmErr := m.Heap.StoreCell(args[0].Ptr, vm.Vec(vec)); vmErr != nil {
		return vm.Value{}, vmErr
	}
	return vm.Value{}, nil
}

// vectorFree releases the data of *v and leaves a null vector behind.
func (l *Library) vectorFree(_ context.Context, m *vm.VM, args []vm.Value) (vm.Value, *vm.VMError) {
	if len(args) != 1 || args[0].Kind != vm.VKPtr {
		return vm.Value{}, vm.Errorf(vm.PanicTypeMismatch, "%s expects a vector slot", irgen.FnVectorFree)
	}
	cell, vmErr := m.Heap.LoadCell(args[0].Ptr)
	if vmErr != nil {
		return vm.Value{}, vmErr
	}
	if vmErr := m.Heap.Free(cell.Vec.Data); vmErr != nil {
		return vm.Value{}, vmErr
	}
	if vmErr := m.Heap.StoreCell(args[0].Ptr, vm.Vec(vm.Vector{})); vmErr != nil {
		return vm.Value{}, vmErr
	}
	return vm.Value{}, nil
}
