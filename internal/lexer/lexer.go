package lexer

import (
	"io"

	"kalmap/internal/source"
	"kalmap/internal/token"
)

type Lexer struct {
	cursor Cursor
	opts   Options
	look   *token.Token // 1 элементный буфер для токена
	done   bool
}

// New lexes a file already held in fs.
func New(fs *source.FileSet, id source.FileID, opts Options) *Lexer {
	return &Lexer{cursor: NewCursor(fs, id), opts: opts}
}

// NewStream lexes r lazily, appending consumed input to the streamed file id.
// Nothing is read until the first call to Next or Peek.
func NewStream(fs *source.FileSet, id source.FileID, r io.Reader, opts Options) *Lexer {
	return &Lexer{cursor: NewStreamCursor(fs, id, r), opts: opts}
}

// Next возвращает следующий значимый токен.
// После EOF всегда возвращает EOF и больше не читает вход.
func (lx *Lexer) Next() token.Token {
	if lx.look != nil {
		tok := *lx.look
		lx.look = nil
		return tok
	}
	if lx.done {
		return lx.eofToken()
	}

	lx.skipTrivia()
	if lx.cursor.EOF() {
		lx.done = true
		return lx.eofToken()
	}

	ch := lx.cursor.Peek()
	switch {
	case isIdentStart(ch):
		return lx.scanIdentOrKeyword()
	case isNumberByte(ch):
		return lx.scanNumber()
	default:
		start := lx.cursor.Mark()
		lx.cursor.Bump()
		return token.Token{Kind: token.Char, Span: lx.cursor.SpanFrom(start), Text: string([]byte{ch})}
	}
}

// Peek возвращает следующий токен, не потребляя его.
func (lx *Lexer) Peek() token.Token {
	t := lx.Next()
	lx.look = &t
	return t
}

// Err returns the input read error that ended the stream early, if any.
func (lx *Lexer) Err() error {
	return lx.cursor.Err()
}

func (lx *Lexer) eofToken() token.Token {
	sp := lx.cursor.SpanFrom(lx.cursor.Mark())
	return token.Token{Kind: token.EOF, Span: sp}
}
