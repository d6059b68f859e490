package parser

import (
	"testing"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/token"
)

func TestParseTopLevelExpr(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"multiplication binds tighter", "1+2*3", "(1 + (2 * 3))"},
		{"parentheses", "(1+2)*3", "((1 + 2) * 3)"},
		{"left associative", "a-b-c", "((a - b) - c)"},
		{"comparison below additive", "a+1 < b*2", "((a + 1) < (b * 2))"},
		{"assignment lowest", "x = y + 1", "(x = (y + 1))"},
		{"unary", "!a + b", "((!a) + b)"},
		{"nested unary", "-!x", "(-(!x))"},
		{"call", "f(1, g(x), y+2)", "f(1, g(x), (y + 2))"},
		{"empty call", "f()", "f()"},
		{"map", "map(sq, v, w)", "map[sq](v, w)"},
		{"map variable", "map", "map"},
		{"if", "if x < 3 then 1 else f(x)", "if (x < 3) then 1 else f(x)"},
		{"for default step", "for i = 0, i < 5 in putchard(42)", "for i = 0, (i < 5), 1 in putchard(42)"},
		{"for explicit step", "for i = 10, i > 0, -1 in i", "for i = 10, (i > 0), (-1) in i"},
		{"var shadowing", "var x = 1 in var x = x in x", "var x = 1 in var x = x in x"},
		{"var list", "var a, b = 2, vector v[4] in b", "var a, b = 2, vector v[4] in b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, bag := newTestParser(t, tt.input, nil)
			fn, ok := p.ParseTopLevelExpr()
			if !ok {
				t.Fatalf("parse failed: %s", diagnosticsSummary(bag))
			}
			if fn.Proto.Name != ast.AnonExprName {
				t.Errorf("anonymous name = %q", fn.Proto.Name)
			}
			if got := render(p.Arenas().Exprs, fn.Body); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if bag.Len() != 0 {
				t.Errorf("unexpected diagnostics: %s", diagnosticsSummary(bag))
			}
			if p.Peek().Kind != token.EOF {
				t.Errorf("input not fully consumed, next %v", p.Peek().Kind)
			}
		})
	}
}

func TestParseUserOperatorPrecedence(t *testing.T) {
	ops := NewOpTable()
	ops.Install('|', 5)
	ops.Install('^', 50)

	p, bag := newTestParser(t, "a | b < c ^ d", ops)
	fn, ok := p.ParseTopLevelExpr()
	if !ok {
		t.Fatalf("parse failed: %s", diagnosticsSummary(bag))
	}
	if got, want := render(p.Arenas().Exprs, fn.Body), "(a | (b < (c ^ d)))"; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestParseUnregisteredOperatorStopsExpression(t *testing.T) {
	p, bag := newTestParser(t, "a | b", nil)
	fn, ok := p.ParseTopLevelExpr()
	if !ok {
		t.Fatalf("parse failed: %s", diagnosticsSummary(bag))
	}
	if got := render(p.Arenas().Exprs, fn.Body); got != "a" {
		t.Fatalf("got %s", got)
	}
	if !p.Peek().IsChar('|') {
		t.Fatalf("expected '|' to remain, got %v", p.Peek())
	}
}

func TestParseErrorsReportOnce(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  diag.Code
	}{
		{"missing rparen", "(1 + 2", diag.SynExpectRParen},
		{"missing then", "if x 1 else 2", diag.SynExpectThen},
		{"missing else", "if x then 1", diag.SynExpectElse},
		{"for without assign", "for i 0, 1 in 2", diag.SynForExpectAssign},
		{"for without comma", "for i = 0 in 1", diag.SynForExpectComma},
		{"for without in", "for i = 0, 1 2", diag.SynForMissingIn},
		{"var without in", "var x = 1 x", diag.SynVarMissingIn},
		{"var without name", "var 1 in 2", diag.SynExpectIdentifier},
		{"vector without bracket", "var vector v 3 in v", diag.SynExpectRBracket},
		{"map without callee", "map(1, v)", diag.SynMapCallee},
		{"map without vectors", "map(f)", diag.SynMapExpectArgument},
		{"map empty list", "map(f, )", diag.SynMapExpectArgument},
		{"bad argument separator", "f(1 2)", diag.SynExpectRParen},
		{"unexpected token", ")", diag.SynExpectExpression},
		{"eof", "1 +", diag.SynExpectExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, bag := newTestParser(t, tt.input, nil)
			if _, ok := p.ParseTopLevelExpr(); ok {
				t.Fatalf("expected failure")
			}
			if bag.Len() != 1 || bag.Items()[0].Code != tt.code {
				t.Fatalf("diagnostics = %s, want one %s", diagnosticsSummary(bag), tt.code.ID())
			}
		})
	}
}

func TestParseInvalidTokenNotReportedTwice(t *testing.T) {
	p, bag := newTestParser(t, "1.2.3 + 1", nil)
	if _, ok := p.ParseTopLevelExpr(); ok {
		t.Fatalf("expected failure")
	}
	if bag.Len() != 1 || bag.Items()[0].Code != diag.LexBadNumber {
		t.Fatalf("diagnostics = %s", diagnosticsSummary(bag))
	}
}
