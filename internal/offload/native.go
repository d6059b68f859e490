package offload

import (
	"context"
	"errors"

	"kalmap/internal/irgen"
	"kalmap/internal/vm"
)

// Bind installs the dispatcher as the vector_map routine of m:
//
//	void vector_map(i8* name, dvec* res, dvec* args, i32 argc)
func (d *Dispatcher) Bind(m *vm.VM) {
	m.Register(irgen.FnVectorMap, d.vectorMap)
}

func (d *Dispatcher) vectorMap(ctx context.Context, m *vm.VM, args []vm.Value) (vm.Value, *vm.VMError) {
	if len(args) != 4 || args[0].Kind != vm.VKPtr || args[1].Kind != vm.VKPtr || args[2].Kind != vm.VKPtr {
		return vm.Value{}, vm.Errorf(vm.PanicTypeMismatch, "%s expects (name, result, args, argc)", irgen.FnVectorMap)
	}
	name, vmErr := m.Heap.CString(args[0].Ptr)
	if vmErr != nil {
		return vm.Value{}, vmErr
	}
	argc := int(args[3].I)
	inputs := make([][]float64, argc)
	for i := range inputs {
		slot := args[2].Ptr
		slot.Off += i
		cell, vmErr := m.Heap.LoadCell(slot)
		if vmErr != nil {
			return vm.Value{}, vmErr
		}
		if inputs[i], vmErr = m.Heap.VectorData(cell.Vec); vmErr != nil {
			return vm.Value{}, vmErr
		}
	}

	out, err := d.Map(ctx, m.M, name, inputs)
	var abandoned *MapError
	if err != nil && !errors.As(err, &abandoned) {
		return vm.Value{}, vm.Wrap(err)
	}
	// abandoned calls were reported by Map and yield (null, 0)
	res := vm.Vector{}
	if err == nil && len(out) > 0 {
		res.Data = m.Heap.AllocFloats(len(out))
		dst, vmErr := m.Heap.Floats(res.Data, len(out))
		if vmErr != nil {
			return vm.Value{}, vmErr
		}
		copy(dst, out)
		res.Len = int32(len(out))
	}
	if vmErr := m.Heap.StoreCell(args[1].Ptr, vm.Vec(res)); vmErr != nil {
		return vm.Value{}, vmErr
	}
	return vm.Value{}, nil
}
