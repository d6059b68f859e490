package parser

import (
	"kalmap/internal/diag"
	"kalmap/internal/source"
	"kalmap/internal/token"
)

// advance съедает следующий токен и обновляет lastSpan
func (p *Parser) advance() token.Token {
	tok := p.lx.Next()
	if tok.Kind != token.EOF {
		p.lastSpan = tok.Span
	}
	return tok
}

// getDiagnosticSpan возвращает лучший span для диагностики: у EOF нет текста,
// поэтому указываем на позицию сразу после последнего токена.
func (p *Parser) getDiagnosticSpan() source.Span {
	peek := p.lx.Peek()
	if peek.Kind == token.EOF && p.lastSpan.End > 0 {
		return source.Span{File: p.lastSpan.File, Start: p.lastSpan.End, End: p.lastSpan.End}
	}
	return peek.Span
}

// expectChar consumes the character c or reports code.
func (p *Parser) expectChar(c byte, code diag.Code, msg string) (token.Token, bool) {
	if p.atChar(c) {
		return p.advance(), true
	}
	p.err(code, msg)
	return token.Token{}, false
}

// expect consumes a token of kind k or reports code.
func (p *Parser) expect(k token.Kind, code diag.Code, msg string) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	p.err(code, msg)
	return token.Token{}, false
}

// err reports at the current token. An Invalid token was already reported
// by the lexer, so nothing is added for it.
func (p *Parser) err(code diag.Code, msg string) {
	if p.at(token.Invalid) {
		return
	}
	p.report(code, diag.SevError, p.getDiagnosticSpan(), msg)
}

func (p *Parser) report(code diag.Code, sev diag.Severity, sp source.Span, msg string) {
	if p.opts.Reporter != nil {
		p.opts.Reporter.Report(diag.Diagnostic{Severity: sev, Code: code, Message: msg, Primary: sp})
	}
}
