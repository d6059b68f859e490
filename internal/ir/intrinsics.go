package ir

// Device special registers, declared as nullary i32 functions.
const (
	IntrinsicTidX   = "llvm.nvvm.read.ptx.sreg.tid.x"
	IntrinsicNtidX  = "llvm.nvvm.read.ptx.sreg.ntid.x"
	IntrinsicCtaidX = "llvm.nvvm.read.ptx.sreg.ctaid.x"
)

var deviceIntrinsics = map[string]struct{}{
	IntrinsicTidX:   {},
	IntrinsicNtidX:  {},
	IntrinsicCtaidX: {},
}

// IsDeviceIntrinsic reports whether name is a special register the device
// backends resolve themselves.
func IsDeviceIntrinsic(name string) bool {
	_, ok := deviceIntrinsics[name]
	return ok
}

// DeclareIntrinsic adds the declaration of a special register read.
func (m *Module) DeclareIntrinsic(name string) *Func {
	return m.DeclareFunc(name, nil, TypeI32)
}
