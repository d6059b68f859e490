package parser

import (
	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/token"
)

// parseExpr - главная точка входа для парсинга выражений
func (p *Parser) parseExpr() (ast.ExprID, bool) {
	left, ok := p.parseUnaryExpr()
	if !ok {
		return ast.NoExprID, false
	}
	return p.parseBinaryRHS(0, left)
}

// tokPrecedence returns the binary precedence of the current token or -1.
func (p *Parser) tokPrecedence() int {
	tok := p.lx.Peek()
	if tok.Kind != token.Char {
		return -1
	}
	return p.ops.Precedence(tok.Byte())
}

// parseBinaryRHS does precedence climbing: consumes operators that bind at
// least as tightly as minPrec, all left-associative.
func (p *Parser) parseBinaryRHS(minPrec int, left ast.ExprID) (ast.ExprID, bool) {
	for {
		prec := p.tokPrecedence()
		if prec < minPrec {
			return left, true
		}

		opTok := p.advance()

		right, ok := p.parseUnaryExpr()
		if !ok {
			return ast.NoExprID, false
		}

		// если следующий оператор связывает сильнее, он забирает right себе
		if next := p.tokPrecedence(); prec < next {
			right, ok = p.parseBinaryRHS(prec+1, right)
			if !ok {
				return ast.NoExprID, false
			}
		}

		span := p.arenas.Exprs.Get(left).Span.Cover(p.arenas.Exprs.Get(right).Span)
		left = p.arenas.Exprs.NewBinary(span, opTok.Byte(), left, right)
	}
}

// parseUnaryExpr: any character other than '(' and ',' in prefix position
// is a unary operator application.
func (p *Parser) parseUnaryExpr() (ast.ExprID, bool) {
	tok := p.lx.Peek()
	if tok.Kind != token.Char || tok.Byte() >= 0x80 || tok.IsChar('(') || tok.IsChar(',') {
		return p.parsePrimary()
	}

	opTok := p.advance()
	operand, ok := p.parseUnaryExpr()
	if !ok {
		return ast.NoExprID, false
	}
	span := opTok.Span.Cover(p.arenas.Exprs.Get(operand).Span)
	return p.arenas.Exprs.NewUnary(span, opTok.Byte(), operand), true
}

func (p *Parser) parsePrimary() (ast.ExprID, bool) {
	tok := p.lx.Peek()
	switch {
	case tok.Kind == token.Ident:
		return p.parseIdentExpr()
	case tok.Kind == token.Number:
		p.advance()
		return p.arenas.Exprs.NewNumber(tok.Span, tok.Num), true
	case tok.IsChar('('):
		return p.parseParenExpr()
	case tok.Kind == token.KwIf:
		return p.parseIfExpr()
	case tok.Kind == token.KwFor:
		return p.parseForExpr()
	case tok.Kind == token.KwVar:
		return p.parseVarExpr()
	default:
		p.err(diag.SynExpectExpression, "unknown token when expecting an expression")
		return ast.NoExprID, false
	}
}
