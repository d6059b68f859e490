package lexer_test

import (
	"io"
	"strings"
	"testing"

	"kalmap/internal/diag"
	"kalmap/internal/lexer"
	"kalmap/internal/source"
	"kalmap/internal/token"
)

// makeTestLexer создаёт лексер для тестовой строки
func makeTestLexer(input string) (*lexer.Lexer, *diag.Bag) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.k", []byte(input))
	bag := diag.NewBag(16)
	return lexer.New(fs, id, lexer.Options{Reporter: diag.BagReporter{Bag: bag}}), bag
}

// collectAllTokens собирает все токены до EOF
func collectAllTokens(lx *lexer.Lexer) []token.Token {
	tokens := make([]token.Token, 0)
	for {
		tok := lx.Next()
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return tokens
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexer_Sequences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.Kind
		texts []string
	}{
		{
			name:  "definition",
			input: "def foo(x y) x+y",
			want: []token.Kind{token.KwDef, token.Ident, token.Char, token.Ident, token.Ident,
				token.Char, token.Ident, token.Char, token.Ident, token.EOF},
			texts: []string{"def", "foo", "(", "x", "y", ")", "x", "+", "y", ""},
		},
		{
			name:  "keywords are exact",
			input: "if then else for in binary unary var vector extern Def",
			want: []token.Kind{token.KwIf, token.KwThen, token.KwElse, token.KwFor, token.KwIn,
				token.KwBinary, token.KwUnary, token.KwVar, token.KwVector, token.KwExtern, token.Ident, token.EOF},
		},
		{
			name:  "map is an identifier",
			input: "map(sq, v)",
			want:  []token.Kind{token.Ident, token.Char, token.Ident, token.Char, token.Ident, token.Char, token.EOF},
		},
		{
			name:  "comments run to end of line",
			input: "# comment only\n  1 # trailing\n2",
			want:  []token.Kind{token.Number, token.Number, token.EOF},
			texts: []string{"1", "2", ""},
		},
		{
			name:  "comment at eof",
			input: "x # no newline",
			want:  []token.Kind{token.Ident, token.EOF},
		},
		{
			name:  "identifiers with digits and underscores",
			input: "_a1 b_2c",
			want:  []token.Kind{token.Ident, token.Ident, token.EOF},
			texts: []string{"_a1", "b_2c", ""},
		},
		{
			name:  "operators are single characters",
			input: "a<=b",
			want:  []token.Kind{token.Ident, token.Char, token.Char, token.Ident, token.EOF},
		},
		{
			name:  "empty",
			input: "   \n\t ",
			want:  []token.Kind{token.EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lx, bag := makeTestLexer(tt.input)
			toks := collectAllTokens(lx)
			got := kinds(toks)
			if len(got) != len(tt.want) {
				t.Fatalf("kinds = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("token %d kind = %v, want %v (all %v)", i, got[i], tt.want[i], got)
				}
			}
			for i, txt := range tt.texts {
				if toks[i].Text != txt {
					t.Errorf("token %d text = %q, want %q", i, toks[i].Text, txt)
				}
			}
			if bag.Len() != 0 {
				t.Errorf("unexpected diagnostics: %+v", bag.Items())
			}
		})
	}
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"0", 0},
		{"42", 42},
		{"3.25", 3.25},
		{".5", 0.5},
		{"1.", 1},
	}
	for _, tt := range tests {
		lx, bag := makeTestLexer(tt.input)
		tok := lx.Next()
		if tok.Kind != token.Number || tok.Num != tt.want {
			t.Errorf("%q: got %v %v, want Number %v", tt.input, tok.Kind, tok.Num, tt.want)
		}
		if bag.Len() != 0 {
			t.Errorf("%q: unexpected diagnostics %+v", tt.input, bag.Items())
		}
	}
}

func TestLexer_MalformedNumbers(t *testing.T) {
	for _, input := range []string{"1.2.3", ".", "..5"} {
		lx, bag := makeTestLexer(input + " x")
		tok := lx.Next()
		if tok.Kind != token.Invalid || tok.Text != input {
			t.Errorf("%q: got %v %q, want Invalid", input, tok.Kind, tok.Text)
		}
		if bag.Len() != 1 || bag.Items()[0].Code != diag.LexBadNumber {
			t.Errorf("%q: diagnostics = %+v", input, bag.Items())
		}
		if next := lx.Next(); next.Kind != token.Ident {
			t.Errorf("%q: lexing did not resume, got %v", input, next.Kind)
		}
	}
}

func TestLexer_Spans(t *testing.T) {
	lx, _ := makeTestLexer("def  f")
	def := lx.Next()
	f := lx.Next()
	if def.Span.Start != 0 || def.Span.End != 3 {
		t.Errorf("def span = %v", def.Span)
	}
	if f.Span.Start != 5 || f.Span.End != 6 {
		t.Errorf("f span = %v", f.Span)
	}
}

func TestLexer_PeekDoesNotConsume(t *testing.T) {
	lx, _ := makeTestLexer("a b")
	if p := lx.Peek(); p.Text != "a" {
		t.Fatalf("Peek = %q", p.Text)
	}
	if n := lx.Next(); n.Text != "a" {
		t.Fatalf("Next after Peek = %q", n.Text)
	}
	if n := lx.Next(); n.Text != "b" {
		t.Fatalf("second Next = %q", n.Text)
	}
}

// countingReader отдаёт данные кусками и считает обращения после EOF.
type countingReader struct {
	chunks     []string
	reads      int
	afterEOF   int
	reachedEOF bool
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.reads++
	if r.reachedEOF {
		r.afterEOF++
	}
	if len(r.chunks) == 0 {
		r.reachedEOF = true
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestLexer_StreamEOFIsSticky(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddStreamed("<stdin>")
	r := &countingReader{chunks: []string{"def f(x", ") x*", "x;"}}
	lx := lexer.NewStream(fs, id, r, lexer.Options{})

	toks := collectAllTokens(lx)
	if len(toks) != 10 {
		t.Fatalf("got %d tokens: %v", len(toks), kinds(toks))
	}
	for i := 0; i < 5; i++ {
		if tok := lx.Next(); tok.Kind != token.EOF {
			t.Fatalf("Next after EOF = %v", tok.Kind)
		}
	}
	if r.afterEOF != 0 {
		t.Fatalf("reader touched %d times after EOF", r.afterEOF)
	}
	if got := string(fs.Get(id).Content); got != "def f(x) x*x;" {
		t.Fatalf("streamed content = %q", got)
	}
}

func TestLexer_StreamReadsLazily(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddStreamed("<stdin>")
	r := &countingReader{chunks: []string{"1;\n", "2;\n"}}
	lx := lexer.NewStream(fs, id, r, lexer.Options{})

	if r.reads != 0 {
		t.Fatalf("reader used before first token")
	}
	if tok := lx.Next(); tok.Kind != token.Number {
		t.Fatalf("first token = %v", tok.Kind)
	}
	if tok := lx.Next(); !tok.IsChar(';') {
		t.Fatalf("second token = %v", tok.Kind)
	}
	if r.reads != 1 {
		t.Fatalf("reads after first unit = %d, want 1", r.reads)
	}
}

func TestLexer_StreamReadError(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddStreamed("<stdin>")
	lx := lexer.NewStream(fs, id, io.MultiReader(strings.NewReader("x"), errReader{}), lexer.Options{})
	collectAllTokens(lx)
	if lx.Err() == nil {
		t.Fatalf("read error not surfaced")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
