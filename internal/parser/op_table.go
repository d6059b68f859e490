package parser

// Приоритеты встроенных бинарных операторов. Чем больше число, тем сильнее связывает.
const (
	precAssignment     = 2  // =
	precComparison     = 10 // < >
	precAdditive       = 20 // + -
	precMultiplicative = 40 // * /
)

// MinPrecedence and MaxPrecedence bound user-declared binary precedences.
const (
	MinPrecedence = 1
	MaxPrecedence = 100
)

// OpTable maps binary operator characters to their precedence. It is owned
// by the compiler session and shared by every unit it parses; user-defined
// operators are installed and retracted by the code generator.
type OpTable struct {
	prec map[byte]int
}

// NewOpTable returns a table holding the built-in operators.
func NewOpTable() *OpTable {
	return &OpTable{prec: map[byte]int{
		'=': precAssignment,
		'<': precComparison,
		'>': precComparison,
		'+': precAdditive,
		'-': precAdditive,
		'*': precMultiplicative,
		'/': precMultiplicative,
	}}
}

// Precedence returns the precedence of op, or -1 when op is not a binary operator.
func (t *OpTable) Precedence(op byte) int {
	if p, ok := t.prec[op]; ok && p > 0 {
		return p
	}
	return -1
}

// Install registers op with prec and returns the previous state so that a
// failed definition can put it back with Restore.
func (t *OpTable) Install(op byte, prec int) (prev int, existed bool) {
	prev, existed = t.prec[op]
	t.prec[op] = prec
	return prev, existed
}

// Restore undoes Install.
func (t *OpTable) Restore(op byte, prev int, existed bool) {
	if existed {
		t.prec[op] = prev
		return
	}
	delete(t.prec, op)
}

// Retract removes a user-defined operator. Built-in operators stay and
// Retract reports false for them.
func (t *OpTable) Retract(op byte) bool {
	switch op {
	case '=', '<', '>', '+', '-', '*', '/':
		return false
	}
	_, ok := t.prec[op]
	delete(t.prec, op)
	return ok
}

// Has reports whether op is currently a binary operator.
func (t *OpTable) Has(op byte) bool {
	return t.Precedence(op) > 0
}
