package devcc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"kalmap/internal/ir"
	"kalmap/internal/nvvm"
)

// ErrNoToolchain means no external device compiler is configured.
var ErrNoToolchain = errors.New("no NVVM compiler configured (set NVVMCC or [toolchain] nvvmcc)")

// NVVM emits NVVM IR and runs an external compiler to PTX:
//
//	$NVVMCC kernel.ll -o kernel.ptx
type NVVM struct {
	Tool    string
	WorkDir string
	Keep    bool
}

func (c *NVVM) Name() string { return "nvvm" }

func (c *NVVM) Compile(ctx context.Context, m *ir.Module, kernel string) (*Code, error) {
	fail := func(log string, err error) (*Code, error) {
		return nil, &CompileError{Backend: "nvvm", Kernel: kernel, Log: log, Err: err}
	}
	if c.Tool == "" {
		return fail("", ErrNoToolchain)
	}
	text, err := nvvm.Emit(m)
	if err != nil {
		return fail("", err)
	}

	dir, err := os.MkdirTemp(c.WorkDir, "kalmap-"+kernel+"-")
	if err != nil {
		return fail("", fmt.Errorf("failed to create build dir: %w", err))
	}
	if !c.Keep {
		defer os.RemoveAll(dir)
	}
	src := filepath.Join(dir, "kernel.ll")
	out := filepath.Join(dir, "kernel.ptx")
	if err := os.WriteFile(src, []byte(text), 0o600); err != nil {
		return fail("", fmt.Errorf("failed to write %s: %w", src, err))
	}

	cmd := exec.CommandContext(ctx, c.Tool, src, "-o", out)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fail(strings.TrimSpace(stderr.String()), fmt.Errorf("%s: %w", filepath.Base(c.Tool), err))
	}
	ptx, err := os.ReadFile(out)
	if err != nil {
		return fail(strings.TrimSpace(stderr.String()), fmt.Errorf("compiler produced no output: %w", err))
	}
	return &Code{Format: FormatPTX, Image: ptx, Kernel: kernel, Log: strings.TrimSpace(stderr.String())}, nil
}
