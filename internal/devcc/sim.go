package devcc

import (
	"context"
	"fmt"
	"strings"

	"kalmap/internal/cuda/simdev"
	"kalmap/internal/ir"
)

// Sim packages the module for the simulated device.
type Sim struct{}

func (Sim) Name() string { return "sim" }

// Compile rejects modules that call anything but device intrinsics
// without defining it; the device cannot reach host routines.
func (Sim) Compile(_ context.Context, m *ir.Module, kernel string) (*Code, error) {
	if f := m.Func(kernel); f == nil || f.IsDeclaration() {
		return nil, &CompileError{Backend: "sim", Kernel: kernel, Err: fmt.Errorf("kernel %s is not defined", kernel)}
	}
	var unresolved []string
	for _, f := range m.Funcs {
		if f.IsDeclaration() && !ir.IsDeviceIntrinsic(f.Name) {
			unresolved = append(unresolved, f.Name)
		}
	}
	if len(unresolved) > 0 {
		log := "undefined reference to " + strings.Join(unresolved, ", undefined reference to ")
		return nil, &CompileError{Backend: "sim", Kernel: kernel, Log: log,
			Err: fmt.Errorf("%d unresolved device symbol(s)", len(unresolved))}
	}
	image, err := simdev.EncodeImage(m)
	if err != nil {
		return nil, &CompileError{Backend: "sim", Kernel: kernel, Err: err}
	}
	return &Code{Format: FormatSim, Image: image, Kernel: kernel}, nil
}
