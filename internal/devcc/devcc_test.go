package devcc_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"kalmap/internal/cuda/simdev"
	"kalmap/internal/devcc"
	"kalmap/internal/offload"
	"kalmap/internal/testkit"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		opts    devcc.Options
		want    string
		wantErr bool
	}{
		{devcc.Options{}, "sim", false},
		{devcc.Options{Backend: "auto", NVVMCC: "/opt/nvvmcc"}, "nvvm", false},
		{devcc.Options{Backend: "sim", NVVMCC: "/opt/nvvmcc"}, "sim", false},
		{devcc.Options{Backend: "nvvm"}, "nvvm", false},
		{devcc.Options{Backend: "ptxas"}, "", true},
	}
	for _, tt := range tests {
		c, err := devcc.Select(tt.opts)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Select(%+v) succeeded", tt.opts)
			}
			continue
		}
		if err != nil || c.Name() != tt.want {
			t.Errorf("Select(%+v) = %v, %v; want %s", tt.opts, c, err, tt.want)
		}
	}
}

func TestSimCompileProducesLoadableImage(t *testing.T) {
	m, k, err := testkit.KernelModule("def sq(x) x*x;", "sq", 8, offload.ABIGrid, 128)
	if err != nil {
		t.Fatal(err)
	}
	code, err := devcc.Sim{}.Compile(context.Background(), m, k.Name)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if code.Format != devcc.FormatSim || code.Kernel != k.Name {
		t.Fatalf("code = %+v", code)
	}
	img, err := simdev.DecodeImage(code.Image)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(img.Kernels) != 1 || img.Kernels[0] != k.Name || img.Module.Func("sq") == nil {
		t.Fatalf("image kernels = %v", img.Kernels)
	}
}

func TestSimCompileRejectsHostCalls(t *testing.T) {
	m, k, err := testkit.KernelModule("extern putchard(c); def noisy(x) putchard(x) + x;", "noisy", 4, offload.ABIGrid, 128)
	if err != nil {
		t.Fatal(err)
	}
	_, err = devcc.Sim{}.Compile(context.Background(), m, k.Name)
	var cerr *devcc.CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want CompileError", err)
	}
	if !strings.Contains(cerr.Log, "putchard") {
		t.Fatalf("log = %q", cerr.Log)
	}
}

func writeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "nvvmcc")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNVVMRunsExternalCompiler(t *testing.T) {
	// The fake compiler copies its input so the test can inspect the IR.
	tool := writeTool(t, `echo "note: fake compiler" >&2; cp "$1" "$3"`)
	m, k, err := testkit.KernelModule("def sq(x) x*x;", "sq", 8, offload.ABIGrid, 128)
	if err != nil {
		t.Fatal(err)
	}
	c := &devcc.NVVM{Tool: tool, WorkDir: t.TempDir()}
	code, err := c.Compile(context.Background(), m, k.Name)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if code.Format != devcc.FormatPTX || code.Log != "note: fake compiler" {
		t.Fatalf("code = %+v", code)
	}
	if !strings.Contains(string(code.Image), "!nvvm.annotations") {
		t.Fatalf("compiler input lacks kernel annotations:\n%s", code.Image)
	}
	entries, err := os.ReadDir(c.WorkDir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("build dir left behind: %v %v", entries, err)
	}
}

func TestNVVMFailureCarriesLog(t *testing.T) {
	tool := writeTool(t, `echo "ptxas fatal: bad kernel" >&2; exit 3`)
	m, k, err := testkit.KernelModule("def sq(x) x*x;", "sq", 8, offload.ABIGrid, 128)
	if err != nil {
		t.Fatal(err)
	}
	_, err = (&devcc.NVVM{Tool: tool}).Compile(context.Background(), m, k.Name)
	var cerr *devcc.CompileError
	if !errors.As(err, &cerr) || cerr.Log != "ptxas fatal: bad kernel" || cerr.Kernel != k.Name {
		t.Fatalf("err = %#v", err)
	}
}

func TestNVVMWithoutToolchain(t *testing.T) {
	m, k, err := testkit.KernelModule("def sq(x) x*x;", "sq", 8, offload.ABIGrid, 128)
	if err != nil {
		t.Fatal(err)
	}
	_, err = (&devcc.NVVM{}).Compile(context.Background(), m, k.Name)
	if !errors.Is(err, devcc.ErrNoToolchain) {
		t.Fatalf("err = %v", err)
	}
}
