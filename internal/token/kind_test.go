package token_test

import (
	"testing"

	"kalmap/internal/token"
)

func TestLookupKeyword(t *testing.T) {
	tests := []struct {
		in   string
		want token.Kind
		ok   bool
	}{
		{"def", token.KwDef, true},
		{"extern", token.KwExtern, true},
		{"then", token.KwThen, true},
		{"vector", token.KwVector, true},
		{"binary", token.KwBinary, true},
		{"Def", 0, false},
		{"map", 0, false},
		{"define", 0, false},
	}
	for _, tt := range tests {
		got, ok := token.LookupKeyword(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("LookupKeyword(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTokenPredicates(t *testing.T) {
	plus := token.Token{Kind: token.Char, Text: "+"}
	if !plus.IsChar('+') || plus.IsChar('-') || plus.Byte() != '+' {
		t.Fatalf("char predicates broken for %+v", plus)
	}
	kw := token.Token{Kind: token.KwVar, Text: "var"}
	if !kw.IsKeyword() || kw.IsIdent() || kw.Byte() != 0 {
		t.Fatalf("keyword predicates broken for %+v", kw)
	}
	if (token.Token{Kind: token.Ident}).IsKeyword() {
		t.Fatalf("identifier reported as keyword")
	}
}

func TestKindString(t *testing.T) {
	if token.KwFor.String() != "for" || token.EOF.String() != "EOF" {
		t.Fatalf("unexpected names: %s %s", token.KwFor, token.EOF)
	}
	if got := token.Kind(200).String(); got != "Kind(200)" {
		t.Fatalf("unknown kind = %q", got)
	}
}
