package testkit

import (
	"fmt"

	"kalmap/internal/ir"
	"kalmap/internal/offload"
)

// KernelModule compiles src, prunes it to callee and wraps callee in a
// kernel over n elements, the way a map call prepares device code.
func KernelModule(src, callee string, n int32, abi offload.ABI, maxBlock int32) (*ir.Module, *offload.Kernel, error) {
	ev := Eval(src, EvalOptions{})
	if ev.Diags.Len() != 0 {
		return nil, nil, fmt.Errorf("compile: %s", ev.Diags.Items()[0].Message)
	}
	pruned, err := offload.Prune(ev.Module, callee)
	if err != nil {
		return nil, nil, err
	}
	k, err := offload.SynthesizeKernel(pruned, callee, n, abi, maxBlock)
	if err != nil {
		return nil, nil, err
	}
	if err := ir.Verify(pruned); err != nil {
		return nil, nil, err
	}
	return pruned, k, nil
}
