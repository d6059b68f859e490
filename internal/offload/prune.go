package offload

import (
	"errors"
	"fmt"

	"kalmap/internal/ir"
)

var (
	// ErrUnknownFunction means a named function is not in the module.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrNotScalar means a mapped function does not take and return scalars.
	ErrNotScalar = errors.New("function does not take and return scalars")
)

// Prune returns a fresh module holding deep copies of entry, every function
// reachable from it through direct calls, and the globals those functions
// reference. Declarations are kept as declarations. Functions and globals
// keep their relative order from m, which is never modified.
func Prune(m *ir.Module, entry string) (*ir.Module, error) {
	if m.Func(entry) == nil {
		return nil, fmt.Errorf("prune %s: %w", entry, ErrUnknownFunction)
	}

	visited := make(map[string]bool)
	globals := make(map[string]bool)
	stack := []string{entry}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[name] {
			continue
		}
		f := m.Func(name)
		if f == nil {
			return nil, fmt.Errorf("prune %s: call to %s: %w", entry, name, ErrUnknownFunction)
		}
		visited[name] = true
		for bi := range f.Blocks {
			blk := &f.Blocks[bi]
			for ii := range blk.Instrs {
				in := &blk.Instrs[ii]
				if in.Kind == ir.InstrCall && !visited[in.Call.Callee] {
					stack = append(stack, in.Call.Callee)
				}
				for _, op := range in.Operands() {
					if op.Kind == ir.OperandGlobal {
						globals[op.Global] = true
					}
				}
			}
		}
	}

	out := ir.NewModule(m.Name)
	out.DataLayout = m.DataLayout
	out.Triple = m.Triple
	for _, f := range m.Funcs {
		if visited[f.Name] {
			out.AddFunc(f.Clone())
		}
	}
	for _, g := range m.Globals {
		if globals[g.Name] {
			out.Globals = append(out.Globals, ir.Global{Name: g.Name, Data: append([]byte(nil), g.Data...)})
		}
	}
	for _, a := range m.Annotations {
		if visited[a.Func] {
			out.Annotations = append(out.Annotations, a)
		}
	}
	return out, nil
}
