package irgen

import "kalmap/internal/ir"

// scope is a stack of binding layers from names to stack slots. A function
// body, each var and each for loop push a layer; lookups walk inward out.
type scope struct {
	layers []map[string]ir.Operand
}

func newScope() *scope {
	return &scope{layers: []map[string]ir.Operand{{}}}
}

func (s *scope) push() {
	s.layers = append(s.layers, map[string]ir.Operand{})
}

func (s *scope) pop() {
	if len(s.layers) > 1 {
		s.layers = s.layers[:len(s.layers)-1]
	}
}

func (s *scope) bind(name string, slot ir.Operand) {
	s.layers[len(s.layers)-1][name] = slot
}

func (s *scope) lookup(name string) (ir.Operand, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if slot, ok := s.layers[i][name]; ok {
			return slot, true
		}
	}
	return ir.Operand{}, false
}
