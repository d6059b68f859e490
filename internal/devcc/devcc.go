// Package devcc turns a verified kernel module into a loadable device
// image.
package devcc

import (
	"context"
	"fmt"

	"kalmap/internal/ir"
)

// Format names the kind of image a backend produces.
type Format string

const (
	FormatSim Format = "sim"
	FormatPTX Format = "ptx"
)

// Code is a compiled device module.
type Code struct {
	Format Format
	Image  []byte
	Kernel string
	Log    string // toolchain output, may be empty
}

// Compiler compiles m, whose entry is kernel.
type Compiler interface {
	Name() string
	Compile(ctx context.Context, m *ir.Module, kernel string) (*Code, error)
}

// CompileError is a toolchain failure. Log holds what the toolchain
// printed.
type CompileError struct {
	Backend string
	Kernel  string
	Log     string
	Err     error
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("%s: compiling %s failed", e.Backend, e.Kernel)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

// Options selects and configures a backend.
type Options struct {
	Backend string // "auto", "sim" or "nvvm"
	NVVMCC  string // external compiler; required by "nvvm"
	WorkDir string // parent of temporary build dirs, "" means os.TempDir
	Keep    bool   // keep build dirs for inspection
}

// Select returns the backend named by opts. "auto" picks nvvm when an
// external compiler is configured.
func Select(opts Options) (Compiler, error) {
	switch opts.Backend {
	case "", "auto":
		if opts.NVVMCC != "" {
			return &NVVM{Tool: opts.NVVMCC, WorkDir: opts.WorkDir, Keep: opts.Keep}, nil
		}
		return Sim{}, nil
	case "sim":
		return Sim{}, nil
	case "nvvm":
		return &NVVM{Tool: opts.NVVMCC, WorkDir: opts.WorkDir, Keep: opts.Keep}, nil
	}
	return nil, fmt.Errorf("unknown device compiler %q (want auto, sim or nvvm)", opts.Backend)
}
