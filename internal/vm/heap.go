package vm

import "fmt"

// ObjectKind distinguishes heap object layouts.
type ObjectKind uint8

const (
	// OKFloats holds doubles: vector data and double stack slots.
	OKFloats ObjectKind = iota + 1
	// OKCells holds dvec stack slots.
	OKCells
	// OKBytes holds a constant string.
	OKBytes
)

// Object is one allocation. Stack objects belong to a frame and die when it
// returns; global and vector data objects live until freed.
type Object struct {
	Kind   ObjectKind
	Alive  bool
	Stack  bool
	Mapped bool // backed by memory the heap does not own
	Floats []float64
	Cells  []Value
	Bytes  []byte
}

// Heap stores all runtime memory of a VM.
type Heap struct {
	next Handle
	objs map[Handle]*Object
	live int
}

func newHeap() *Heap {
	return &Heap{next: 1, objs: make(map[Handle]*Object, 64)}
}

func (h *Heap) alloc(obj *Object) Pointer {
	handle := h.next
	h.next++
	obj.Alive = true
	h.objs[handle] = obj
	if !obj.Stack && !obj.Mapped && obj.Kind == OKFloats {
		h.live++
	}
	return Pointer{Obj: handle}
}

// AllocFloats allocates n zeroed doubles that outlive the current frame.
func (h *Heap) AllocFloats(n int) Pointer {
	return h.alloc(&Object{Kind: OKFloats, Floats: make([]float64, n)})
}

// MapFloats exposes data as a heap object without copying: stores through
// the returned pointer land in data. Mapped objects cannot be freed.
func (h *Heap) MapFloats(data []float64) Pointer {
	return h.alloc(&Object{Kind: OKFloats, Mapped: true, Floats: data})
}

// LiveBuffers counts vector data objects not yet freed.
func (h *Heap) LiveBuffers() int { return h.live }

// Free releases a vector data object. Freeing null is a no-op.
func (h *Heap) Free(p Pointer) *VMError {
	if p.IsNull() {
		return nil
	}
	obj, ok := h.objs[p.Obj]
	switch {
	case !ok:
		return Errorf(PanicNullPointer, "free of unknown object #%d", p.Obj)
	case !obj.Alive:
		return Errorf(PanicUseAfterFree, "double free of object #%d", p.Obj)
	case obj.Stack || obj.Mapped || obj.Kind != OKFloats:
		return Errorf(PanicTypeMismatch, "free of non-heap object #%d", p.Obj)
	}
	obj.Alive = false
	obj.Floats = nil
	h.live--
	return nil
}

func (h *Heap) release(p Pointer) {
	if obj, ok := h.objs[p.Obj]; ok {
		delete(h.objs, p.Obj)
		obj.Alive = false
	}
}

func (h *Heap) object(p Pointer, kind ObjectKind) (*Object, *VMError) {
	if p.IsNull() {
		return nil, Errorf(PanicNullPointer, "null pointer dereference")
	}
	obj, ok := h.objs[p.Obj]
	if !ok || !obj.Alive {
		return nil, Errorf(PanicUseAfterFree, "access to freed object #%d", p.Obj)
	}
	if obj.Kind != kind {
		return nil, Errorf(PanicTypeMismatch, "object #%d has the wrong layout", p.Obj)
	}
	return obj, nil
}

func checkIndex(p Pointer, n int) *VMError {
	if p.Off < 0 || p.Off >= n {
		return Errorf(PanicOutOfBounds, "index %d out of bounds for object #%d of length %d", p.Off, p.Obj, n)
	}
	return nil
}

// Floats returns a view of n doubles starting at p.
func (h *Heap) Floats(p Pointer, n int) ([]float64, *VMError) {
	if n == 0 {
		return nil, nil
	}
	obj, err := h.object(p, OKFloats)
	if err != nil {
		return nil, err
	}
	if p.Off < 0 || n < 0 || p.Off+n > len(obj.Floats) {
		return nil, Errorf(PanicOutOfBounds, "range [%d, %d) out of bounds for object #%d of length %d", p.Off, p.Off+n, p.Obj, len(obj.Floats))
	}
	return obj.Floats[p.Off : p.Off+n], nil
}

// VectorData returns a view of the doubles of v.
func (h *Heap) VectorData(v Vector) ([]float64, *VMError) {
	if v.Len < 0 {
		return nil, Errorf(PanicOutOfBounds, "negative vector length %d", v.Len)
	}
	return h.Floats(v.Data, int(v.Len))
}

func (h *Heap) loadFloat(p Pointer) (float64, *VMError) {
	obj, err := h.object(p, OKFloats)
	if err != nil {
		return 0, err
	}
	if err := checkIndex(p, len(obj.Floats)); err != nil {
		return 0, err
	}
	return obj.Floats[p.Off], nil
}

func (h *Heap) storeFloat(p Pointer, v float64) *VMError {
	obj, err := h.object(p, OKFloats)
	if err != nil {
		return err
	}
	if err := checkIndex(p, len(obj.Floats)); err != nil {
		return err
	}
	obj.Floats[p.Off] = v
	return nil
}

// LoadCell reads a dvec slot.
func (h *Heap) LoadCell(p Pointer) (Value, *VMError) {
	obj, err := h.object(p, OKCells)
	if err != nil {
		return Value{}, err
	}
	if err := checkIndex(p, len(obj.Cells)); err != nil {
		return Value{}, err
	}
	v := obj.Cells[p.Off]
	if v.Kind == VKInvalid {
		v = Vec(Vector{})
	}
	return v, nil
}

// StoreCell writes a dvec slot.
func (h *Heap) StoreCell(p Pointer, v Value) *VMError {
	obj, err := h.object(p, OKCells)
	if err != nil {
		return err
	}
	if err := checkIndex(p, len(obj.Cells)); err != nil {
		return err
	}
	obj.Cells[p.Off] = v
	return nil
}

// CString reads a NUL-terminated constant string.
func (h *Heap) CString(p Pointer) (string, *VMError) {
	obj, err := h.object(p, OKBytes)
	if err != nil {
		return "", err
	}
	data := obj.Bytes[min(p.Off, len(obj.Bytes)):]
	for i, c := range data {
		if c == 0 {
			return string(data[:i]), nil
		}
	}
	return string(data), nil
}

func (o *Object) String() string {
	return fmt.Sprintf("object{kind=%d alive=%t stack=%t}", o.Kind, o.Alive, o.Stack)
}
