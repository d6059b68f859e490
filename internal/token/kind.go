package token

import "fmt"

// Kind represents the category of a source token.
type Kind uint8

const (
	// Invalid indicates a malformed token; the lexer has already reported it.
	Invalid Kind = iota
	// EOF marks the end of the source input.
	EOF

	// Ident represents an identifier token.
	Ident
	// Number represents a numeric literal; Token.Num holds its value.
	Number
	// Char is any other single character (operators, punctuation).
	Char

	// KwDef represents the 'def' keyword.
	KwDef // def
	// KwExtern represents the 'extern' keyword.
	KwExtern // extern
	// KwIf represents the 'if' keyword.
	KwIf // if
	// KwThen represents the 'then' keyword.
	KwThen // then
	// KwElse represents the 'else' keyword.
	KwElse // else
	// KwFor represents the 'for' keyword.
	KwFor // for
	// KwIn represents the 'in' keyword.
	KwIn // in
	// KwBinary represents the 'binary' keyword.
	KwBinary // binary
	// KwUnary represents the 'unary' keyword.
	KwUnary // unary
	// KwVar represents the 'var' keyword.
	KwVar // var
	// KwVector represents the 'vector' keyword.
	KwVector // vector
)

var kindNames = [...]string{
	Invalid:  "Invalid",
	EOF:      "EOF",
	Ident:    "Ident",
	Number:   "Number",
	Char:     "Char",
	KwDef:    "def",
	KwExtern: "extern",
	KwIf:     "if",
	KwThen:   "then",
	KwElse:   "else",
	KwFor:    "for",
	KwIn:     "in",
	KwBinary: "binary",
	KwUnary:  "unary",
	KwVar:    "var",
	KwVector: "vector",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}
