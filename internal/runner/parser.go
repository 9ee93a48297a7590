package runner

import "fmt"

type stmt interface{ stmtNode() }

type assignStmt struct {
	name string
	expr expr
	line int
}

type exprStmt struct {
	expr expr
	line int
}

type ifStmt struct {
	cond      expr
	then      []stmt
	otherwise []stmt
	line      int
}

type forStmt struct {
	cond expr
	body []stmt
	line int
}

func (assignStmt) stmtNode() {}
func (exprStmt) stmtNode()   {}
func (ifStmt) stmtNode()     {}
func (forStmt) stmtNode()    {}

type expr interface{ exprNode() }

type literalExpr struct {
	value Value
}

type identExpr struct {
	name string
	line int
}

type unaryExpr struct {
	op   tokKind
	expr expr
	line int
}

type binaryExpr struct {
	op    tokKind
	left  expr
	right expr
	line  int
}

type callExpr struct {
	name string
	args []expr
	line int
}

func (literalExpr) exprNode() {}
func (identExpr) exprNode()   {}
func (unaryExpr) exprNode()   {}
func (binaryExpr) exprNode()  {}
func (callExpr) exprNode()    {}

type parser struct {
	toks []token
	pos  int
}

func parseProgram(src string) ([]stmt, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmts, err := p.parseBlockBody(tokEOF)
	if err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *parser) skipNewlines() {
	for p.peek().kind == tokNewline {
		p.pos++
	}
}

func (p *parser) expect(kind tokKind, what string) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, fmt.Errorf("%w: line %d: expected %s", ErrSyntax, t.line, what)
	}
	return p.next(), nil
}

// parseBlockBody reads statements until the terminator token, which is left
// unconsumed.
func (p *parser) parseBlockBody(terminator tokKind) ([]stmt, error) {
	stmts := []stmt{}
	for {
		p.skipNewlines()
		if p.peek().kind == terminator || p.peek().kind == tokEOF {
			return stmts, nil
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if t := p.peek().kind; t != tokNewline && t != terminator && t != tokEOF {
			return nil, fmt.Errorf("%w: line %d: expected end of statement", ErrSyntax, p.peek().line)
		}
	}
}

func (p *parser) parseStmt() (stmt, error) {
	t := p.peek()
	if t.kind == tokIdent {
		switch t.text {
		case "if":
			return p.parseIf()
		case "for":
			return p.parseFor()
		}
		if p.toks[p.pos+1].kind == tokAssign {
			name := p.next().text
			p.next() // '='
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return assignStmt{name: name, expr: value, line: t.line}, nil
		}
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return exprStmt{expr: value, line: t.line}, nil
}

func (p *parser) parseIf() (stmt, error) {
	t := p.next() // 'if'
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBrace()
	if err != nil {
		return nil, err
	}
	node := ifStmt{cond: cond, then: then, line: t.line}

	save := p.pos
	p.skipNewlines()
	if e := p.peek(); e.kind == tokIdent && e.text == "else" {
		p.next()
		if f := p.peek(); f.kind == tokIdent && f.text == "if" {
			chained, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			node.otherwise = []stmt{chained}
			return node, nil
		}
		otherwise, err := p.parseBrace()
		if err != nil {
			return nil, err
		}
		node.otherwise = otherwise
		return node, nil
	}
	p.pos = save
	return node, nil
}

func (p *parser) parseFor() (stmt, error) {
	t := p.next() // 'for'
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBrace()
	if err != nil {
		return nil, err
	}
	return forStmt{cond: cond, body: body, line: t.line}, nil
}

func (p *parser) parseBrace() ([]stmt, error) {
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlockBody(tokRBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *parser) parseExpr() (expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (expr, error) {
	return p.parseBinary(p.parseAnd, tokOr)
}

func (p *parser) parseAnd() (expr, error) {
	return p.parseBinary(p.parseEquality, tokAnd)
}

func (p *parser) parseEquality() (expr, error) {
	return p.parseBinary(p.parseComparison, tokEq, tokNeq)
}

func (p *parser) parseComparison() (expr, error) {
	return p.parseBinary(p.parseTerm, tokLt, tokLte, tokGt, tokGte)
}

func (p *parser) parseTerm() (expr, error) {
	return p.parseBinary(p.parseFactor, tokPlus, tokMinus)
}

func (p *parser) parseFactor() (expr, error) {
	return p.parseBinary(p.parseUnary, tokStar, tokSlash, tokPercent)
}

func (p *parser) parseBinary(operand func() (expr, error), ops ...tokKind) (expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		matched := false
		for _, op := range ops {
			if t.kind == op {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: t.kind, left: left, right: right, line: t.line}
	}
}

func (p *parser) parseUnary() (expr, error) {
	t := p.peek()
	if t.kind == tokMinus || t.kind == tokNot || t.kind == tokPlus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.kind == tokPlus {
			return operand, nil
		}
		return unaryExpr{op: t.kind, expr: operand, line: t.line}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return literalExpr{value: Num(t.num)}, nil
	case tokString:
		return literalExpr{value: Str(t.text)}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return literalExpr{value: Bool(true)}, nil
		case "false":
			return literalExpr{value: Bool(false)}, nil
		}
		if p.peek().kind == tokLParen {
			p.next()
			args := []expr{}
			if p.peek().kind != tokRParen {
				for {
					arg, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.peek().kind != tokComma {
						break
					}
					p.next()
				}
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return callExpr{name: t.text, args: args, line: t.line}, nil
		}
		return identExpr{name: t.text, line: t.line}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, fmt.Errorf("%w: line %d: unexpected token %q", ErrSyntax, t.line, t.text)
	}
}
