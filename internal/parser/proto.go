package parser

import (
	"fmt"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/token"
)

// parseType ::= 'vector'?
func (p *Parser) parseType() ast.Type {
	if p.at(token.KwVector) {
		p.advance()
		return ast.TypeVector
	}
	return ast.TypeScalar
}

// parsePrototype
//
//	::= type identifier '(' (type identifier)* ')'
//	::= type 'unary' CHAR '(' type identifier ')'
//	::= type 'binary' CHAR number? '(' type identifier type identifier ')'
func (p *Parser) parsePrototype() (ast.Prototype, bool) {
	startSpan := p.lx.Peek().Span
	proto := ast.Prototype{Result: p.parseType(), Precedence: ast.DefaultPrecedence}

	tok := p.lx.Peek()
	switch tok.Kind {
	case token.Ident:
		p.advance()
		proto.Name = tok.Text
		proto.Kind = ast.ProtoFunction
	case token.KwUnary, token.KwBinary:
		p.advance()
		opTok := p.lx.Peek()
		if opTok.Kind != token.Char || opTok.Byte() >= 0x80 {
			p.err(diag.SynExpectOperator, fmt.Sprintf("expected %s operator", tok.Text))
			return ast.Prototype{}, false
		}
		p.advance()
		proto.OpChar = opTok.Byte()
		proto.Name = tok.Text + string([]byte{proto.OpChar})
		proto.Kind = ast.ProtoUnary
		if tok.Kind == token.KwBinary {
			proto.Kind = ast.ProtoBinary
			if p.at(token.Number) {
				num := p.lx.Peek()
				if num.Num < MinPrecedence || num.Num > MaxPrecedence {
					p.err(diag.SynBadPrecedence, "invalid precedence: must be 1..100")
					return ast.Prototype{}, false
				}
				p.advance()
				proto.Precedence = int(num.Num)
			}
		}
	default:
		p.err(diag.SynExpectPrototype, "expected function name in prototype")
		return ast.Prototype{}, false
	}

	if _, ok := p.expectChar('(', diag.SynExpectLParen, "expected '(' in prototype"); !ok {
		return ast.Prototype{}, false
	}
	for !p.atChar(')') {
		typ := p.parseType()
		name, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected identifier name in prototype")
		if !ok {
			return ast.Prototype{}, false
		}
		proto.Params = append(proto.Params, ast.Param{Name: name.Text, Type: typ, Span: name.Span})
	}
	closeTok := p.advance() // ')'
	proto.Span = startSpan.Cover(closeTok.Span)

	want := 0
	switch proto.Kind {
	case ast.ProtoUnary:
		want = 1
	case ast.ProtoBinary:
		want = 2
	}
	if want != 0 && len(proto.Params) != want {
		p.report(diag.SynOperatorArity, diag.SevError, proto.Span, "invalid number of operands for operator")
		return ast.Prototype{}, false
	}
	return proto, true
}

// ParseDefinition ::= 'def' prototype expression
func (p *Parser) ParseDefinition() (*ast.FuncDecl, bool) {
	p.advance() // def
	proto, ok := p.parsePrototype()
	if !ok {
		return nil, false
	}
	body, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	return &ast.FuncDecl{Proto: proto, Body: body}, true
}

// ParseExtern ::= 'extern' prototype
func (p *Parser) ParseExtern() (*ast.Prototype, bool) {
	p.advance() // extern
	proto, ok := p.parsePrototype()
	if !ok {
		return nil, false
	}
	return &proto, true
}

// ParseTopLevelExpr wraps an expression into an anonymous nullary function.
// The code generator fills in the result type from the body.
func (p *Parser) ParseTopLevelExpr() (*ast.FuncDecl, bool) {
	body, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	return &ast.FuncDecl{
		Proto: ast.Prototype{Name: ast.AnonExprName, Span: p.arenas.Exprs.Get(body).Span},
		Body:  body,
	}, true
}
