package diagfmt

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"kalmap/internal/source"
	"kalmap/internal/token"
)

// TokenOutput is one token of the tokenize JSON listing.
type TokenOutput struct {
	Kind  string      `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Value *float64    `json:"value,omitempty"`
	Span  source.Span `json:"span"`
}

// untilEOF trims everything after the first EOF token.
func untilEOF(tokens []token.Token) []token.Token {
	for i, tok := range tokens {
		if tok.Kind == token.EOF {
			return tokens[:i+1]
		}
	}
	return tokens
}

// FormatTokensPretty prints one token per line with its resolved range.
func FormatTokensPretty(w io.Writer, tokens []token.Token, fs *source.FileSet) error {
	var sb strings.Builder
	for i, tok := range untilEOF(tokens) {
		from, to := fs.Resolve(tok.Span)
		fmt.Fprintf(&sb, "%3d: %-8s", i+1, tok.Kind)
		if tok.Kind == token.Number {
			fmt.Fprintf(&sb, " %q=%g", tok.Text, tok.Num)
		} else if tok.Kind != token.EOF {
			fmt.Fprintf(&sb, " %q", tok.Text)
		}
		fmt.Fprintf(&sb, " at %d:%d-%d:%d\n", from.Line, from.Col, to.Line, to.Col)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatTokensJSON writes the tokens as an indented JSON array.
func FormatTokensJSON(w io.Writer, tokens []token.Token) error {
	tokens = untilEOF(tokens)
	out := make([]TokenOutput, len(tokens))
	for i, tok := range tokens {
		out[i] = TokenOutput{Kind: tok.Kind.String(), Text: tok.Text, Span: tok.Span}
		if tok.Kind == token.Number {
			out[i].Value = &tok.Num
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
