package parser

import (
	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/token"
)

// MapBuiltin is the identifier that introduces a map expression when called.
const MapBuiltin = "map"

// parseIdentExpr
//
//	::= identifier
//	::= identifier '(' (expression (',' expression)*)? ')'
//	::= 'map' '(' identifier (',' expression)+ ')'
func (p *Parser) parseIdentExpr() (ast.ExprID, bool) {
	nameTok := p.advance()
	if !p.atChar('(') {
		return p.arenas.Exprs.NewVariable(nameTok.Span, nameTok.Text), true
	}
	p.advance() // '('

	if nameTok.Text == MapBuiltin {
		return p.parseMapTail(nameTok)
	}

	args, closeTok, ok := p.parseArgList()
	if !ok {
		return ast.NoExprID, false
	}
	return p.arenas.Exprs.NewCall(nameTok.Span.Cover(closeTok.Span), nameTok.Text, args), true
}

// parseArgList parses arguments up to and including ')'.
func (p *Parser) parseArgList() ([]ast.ExprID, token.Token, bool) {
	var args []ast.ExprID
	if !p.atChar(')') {
		for {
			arg, ok := p.parseExpr()
			if !ok {
				return nil, token.Token{}, false
			}
			args = append(args, arg)
			if p.atChar(')') {
				break
			}
			if _, ok := p.expectChar(',', diag.SynExpectRParen, "expected ')' or ',' in argument list"); !ok {
				return nil, token.Token{}, false
			}
		}
	}
	closeTok := p.advance() // ')'
	return args, closeTok, true
}

func (p *Parser) parseMapTail(mapTok token.Token) (ast.ExprID, bool) {
	callee, ok := p.expect(token.Ident, diag.SynMapCallee, "expected function name as first map argument")
	if !ok {
		return ast.NoExprID, false
	}
	if _, ok := p.expectChar(',', diag.SynMapExpectArgument, "expected ',' and at least one vector after the map function"); !ok {
		return ast.NoExprID, false
	}
	if p.atChar(')') {
		p.err(diag.SynMapExpectArgument, "map needs at least one vector argument")
		return ast.NoExprID, false
	}
	args, closeTok, ok := p.parseArgList()
	if !ok {
		return ast.NoExprID, false
	}
	span := mapTok.Span.Cover(closeTok.Span)
	return p.arenas.Exprs.NewMap(span, callee.Text, callee.Span, args), true
}

// parseParenExpr ::= '(' expression ')'
func (p *Parser) parseParenExpr() (ast.ExprID, bool) {
	p.advance() // '('
	inner, ok := p.parseExpr()
	if !ok {
		return ast.NoExprID, false
	}
	if _, ok := p.expectChar(')', diag.SynExpectRParen, "expected ')'"); !ok {
		return ast.NoExprID, false
	}
	return inner, true
}

// parseIfExpr ::= 'if' expression 'then' expression 'else' expression
func (p *Parser) parseIfExpr() (ast.ExprID, bool) {
	ifTok := p.advance()

	cond, ok := p.parseExpr()
	if !ok {
		return ast.NoExprID, false
	}
	if _, ok := p.expect(token.KwThen, diag.SynExpectThen, "expected then"); !ok {
		return ast.NoExprID, false
	}
	then, ok := p.parseExpr()
	if !ok {
		return ast.NoExprID, false
	}
	if _, ok := p.expect(token.KwElse, diag.SynExpectElse, "expected else"); !ok {
		return ast.NoExprID, false
	}
	els, ok := p.parseExpr()
	if !ok {
		return ast.NoExprID, false
	}
	span := ifTok.Span.Cover(p.arenas.Exprs.Get(els).Span)
	return p.arenas.Exprs.NewIf(span, cond, then, els), true
}

// parseForExpr ::= 'for' identifier '=' expr ',' expr (',' expr)? 'in' expression
func (p *Parser) parseForExpr() (ast.ExprID, bool) {
	forTok := p.advance()

	name, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected identifier after for")
	if !ok {
		return ast.NoExprID, false
	}
	if _, ok := p.expectChar('=', diag.SynForExpectAssign, "expected '=' after for"); !ok {
		return ast.NoExprID, false
	}
	start, ok := p.parseExpr()
	if !ok {
		return ast.NoExprID, false
	}
	if _, ok := p.expectChar(',', diag.SynForExpectComma, "expected ',' after for start value"); !ok {
		return ast.NoExprID, false
	}
	end, ok := p.parseExpr()
	if !ok {
		return ast.NoExprID, false
	}

	step := ast.NoExprID
	if p.atChar(',') {
		p.advance()
		if step, ok = p.parseExpr(); !ok {
			return ast.NoExprID, false
		}
	}

	if _, ok := p.expect(token.KwIn, diag.SynForMissingIn, "expected 'in' after for"); !ok {
		return ast.NoExprID, false
	}
	body, ok := p.parseExpr()
	if !ok {
		return ast.NoExprID, false
	}

	span := forTok.Span.Cover(p.arenas.Exprs.Get(body).Span)
	return p.arenas.Exprs.NewFor(span, ast.ExprForData{
		Var:   name.Text,
		Start: start,
		End:   end,
		Step:  step,
		Body:  body,
	}), true
}

// parseVarExpr ::= 'var' binding (',' binding)* 'in' expression
//
//	binding ::= identifier ('=' expression)?
//	        ::= 'vector' identifier '[' expression ']'
func (p *Parser) parseVarExpr() (ast.ExprID, bool) {
	varTok := p.advance()

	var bindings []ast.VarBinding
	for {
		b, ok := p.parseVarBinding()
		if !ok {
			return ast.NoExprID, false
		}
		bindings = append(bindings, b)
		if !p.atChar(',') {
			break
		}
		p.advance()
	}

	if _, ok := p.expect(token.KwIn, diag.SynVarMissingIn, "expected 'in' keyword after 'var'"); !ok {
		return ast.NoExprID, false
	}
	body, ok := p.parseExpr()
	if !ok {
		return ast.NoExprID, false
	}
	span := varTok.Span.Cover(p.arenas.Exprs.Get(body).Span)
	return p.arenas.Exprs.NewVar(span, bindings, body), true
}

func (p *Parser) parseVarBinding() (ast.VarBinding, bool) {
	if p.at(token.KwVector) {
		p.advance()
		name, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected identifier after 'vector'")
		if !ok {
			return ast.VarBinding{}, false
		}
		if _, ok := p.expectChar('[', diag.SynExpectRBracket, "expected opening '[' in vector definition"); !ok {
			return ast.VarBinding{}, false
		}
		length, ok := p.parseExpr()
		if !ok {
			return ast.VarBinding{}, false
		}
		closeTok, ok := p.expectChar(']', diag.SynExpectRBracket, "expected closing ']' in vector definition")
		if !ok {
			return ast.VarBinding{}, false
		}
		return ast.VarBinding{Name: name.Text, Span: name.Span.Cover(closeTok.Span), Length: length}, true
	}

	name, ok := p.expect(token.Ident, diag.SynExpectIdentifier, "expected identifier or 'vector' after var")
	if !ok {
		return ast.VarBinding{}, false
	}
	b := ast.VarBinding{Name: name.Text, Span: name.Span}
	if p.atChar('=') {
		p.advance()
		if b.Init, ok = p.parseExpr(); !ok {
			return ast.VarBinding{}, false
		}
	}
	return b, true
}
