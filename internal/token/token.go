package token

import (
	"kalmap/internal/source"
)

// Token represents a single source token with its location.
type Token struct {
	Kind Kind
	Span source.Span
	Text string
	Num  float64 // value of a Number token
}

// IsKeyword reports whether the token is a language keyword.
func (t Token) IsKeyword() bool {
	return t.Kind >= KwDef && t.Kind <= KwVector
}

// IsIdent reports whether the token is an identifier.
func (t Token) IsIdent() bool { return t.Kind == Ident }

// IsChar reports whether the token is the single character c.
func (t Token) IsChar(c byte) bool {
	return t.Kind == Char && len(t.Text) == 1 && t.Text[0] == c
}

// Byte returns the character of a Char token, or 0.
func (t Token) Byte() byte {
	if t.Kind != Char || len(t.Text) != 1 {
		return 0
	}
	return t.Text[0]
}
