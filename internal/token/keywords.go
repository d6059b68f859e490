package token

var keywords = map[string]Kind{
	"def":    KwDef,
	"extern": KwExtern,
	"if":     KwIf,
	"then":   KwThen,
	"else":   KwElse,
	"for":    KwFor,
	"in":     KwIn,
	"binary": KwBinary,
	"unary":  KwUnary,
	"var":    KwVar,
	"vector": KwVector,
}

// LookupKeyword reports whether ident is a keyword. Matching is exact and case sensitive.
// "map" is deliberately absent: it is an ordinary identifier the parser recognizes in call position.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}
