package parser

import (
	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/lexer"
	"kalmap/internal/source"
	"kalmap/internal/token"
)

type Options struct {
	Reporter diag.Reporter
}

// Parser хранит состояние парсера на один поток исходника.
// Each production either returns a node or reports exactly one diagnostic
// and fails; the caller decides how to recover.
type Parser struct {
	lx       *lexer.Lexer
	arenas   *ast.Builder
	ops      *OpTable
	opts     Options
	lastSpan source.Span // span последнего съеденного токена для лучшей диагностики
}

// New creates a parser reading tokens from lx and allocating nodes in arenas.
func New(lx *lexer.Lexer, arenas *ast.Builder, ops *OpTable, opts Options) *Parser {
	if ops == nil {
		ops = NewOpTable()
	}
	return &Parser{lx: lx, arenas: arenas, ops: ops, opts: opts}
}

// Peek returns the current token without consuming it.
func (p *Parser) Peek() token.Token {
	return p.lx.Peek()
}

// Skip consumes one token. The top-level loop uses it for error recovery
// and to discard ';'.
func (p *Parser) Skip() token.Token {
	return p.advance()
}

// Ops exposes the session operator table.
func (p *Parser) Ops() *OpTable {
	return p.ops
}

// Arenas returns the builder that holds the nodes of the current unit.
func (p *Parser) Arenas() *ast.Builder {
	return p.arenas
}

func (p *Parser) at(k token.Kind) bool {
	return p.lx.Peek().Kind == k
}

func (p *Parser) atChar(c byte) bool {
	return p.lx.Peek().IsChar(c)
}
