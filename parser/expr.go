package parser

import (
	"strconv"
	"strings"

	"github.com/omniql-engine/sqlcore/ast"
)

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.isKeyword("NOT") {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: "NOT", Operand: inner}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	not := false
	if p.isKeyword("NOT") {
		not = true
		p.next()
	}

	switch {
	case p.isKeyword("IN"):
		p.next()
		return p.parseInTail(left, not)
	case p.isKeyword("LIKE"):
		p.next()
		pattern, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.LikeExpr{Target: left, Pattern: pattern, Not: not}, nil
	case p.isKeyword("BETWEEN"):
		p.next()
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if !p.isKeyword("AND") {
			return nil, p.errorf("expected AND in BETWEEN")
		}
		p.next()
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.BetweenExpr{Target: left, Low: lo, High: hi, Not: not}, nil
	}

	if not {
		return nil, p.errorf("unexpected NOT")
	}

	if p.isKeyword("IS") {
		p.next()
		negate := false
		if p.isKeyword("NOT") {
			negate = true
			p.next()
		}
		if !p.isKeyword("NULL") {
			return nil, p.errorf("expected NULL after IS [NOT]")
		}
		p.next()
		return &ast.IsNullExpr{Target: left, Not: negate}, nil
	}

	if p.at(TokenOp) && isComparisonOp(p.cur().Value) {
		op := p.cur().Value
		p.next()
		if p.isKeyword("ALL") || p.isKeyword("ANY") {
			quant := strings.ToUpper(p.cur().Value)
			p.next()
			if err := p.expect(TokenLParen); err != nil {
				return nil, err
			}
			sub, err := p.parseSetOpChain()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokenRParen); err != nil {
				return nil, err
			}
			return &ast.QuantifiedExpr{Op: op, Target: left, Quantifier: quant, Subquery: sub}, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp{Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func isComparisonOp(op string) bool {
	switch op {
	case "=", "<>", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *Parser) parseInTail(left ast.Expr, not bool) (ast.Expr, error) {
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	if p.isKeyword("SELECT") || p.isKeyword("WITH") {
		sub, err := p.parseSetOpChain()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &ast.InExpr{Target: left, Subquery: sub, Not: not}, nil
	}
	var list []ast.Expr
	if !p.at(TokenRParen) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list = append(list, e)
			if p.at(TokenComma) {
				p.next()
				continue
			}
			break
		}
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &ast.InExpr{Target: left, List: list, Not: not}, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(TokenOp) && (p.cur().Value == "+" || p.cur().Value == "-") {
		op := p.cur().Value
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(TokenStar) || (p.at(TokenOp) && (p.cur().Value == "/" || p.cur().Value == "%")) {
		op := p.cur().Value
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.at(TokenOp) && p.cur().Value == "-" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: "-", Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.Kind {
	case TokenNumber:
		p.next()
		if strings.Contains(t.Value, ".") {
			f, _ := strconv.ParseFloat(t.Value, 64)
			return &ast.Literal{Value: ast.Float(f)}, nil
		}
		n, _ := strconv.ParseInt(t.Value, 10, 64)
		return &ast.Literal{Value: ast.Int(n)}, nil
	case TokenString:
		p.next()
		return &ast.Literal{Value: ast.Str(t.Value)}, nil
	case TokenPlaceholderPositional:
		p.next()
		idx := p.posPlaceholderSeq
		p.posPlaceholderSeq++
		return &ast.Placeholder{Index: idx}, nil
	case TokenPlaceholderNamed:
		p.next()
		return &ast.Placeholder{Name: t.Value}, nil
	case TokenStar:
		p.next()
		return &ast.Identifier{Wildcard: true}, nil
	case TokenLParen:
		p.next()
		if p.isKeyword("SELECT") || p.isKeyword("WITH") {
			sub, err := p.parseSetOpChain()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokenRParen); err != nil {
				return nil, err
			}
			return &ast.SubqueryExpr{Query: sub}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return e, nil
	case TokenIdent, TokenQuotedIdent:
		if !p.isKeyword("EXISTS") && !p.isKeyword("CASE") && !p.isKeyword("TRUE") &&
			!p.isKeyword("FALSE") && !p.isKeyword("NULL") {
			return p.parseIdentOrCall()
		}
	}
	if p.isKeyword("EXISTS") {
		p.next()
		if err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		sub, err := p.parseSetOpChain()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &ast.ExistsExpr{Subquery: sub}, nil
	}
	if p.isKeyword("CASE") {
		return p.parseCase()
	}
	if p.isKeyword("TRUE") {
		p.next()
		return &ast.Literal{Value: ast.Bool(true)}, nil
	}
	if p.isKeyword("FALSE") {
		p.next()
		return &ast.Literal{Value: ast.Bool(false)}, nil
	}
	if p.isKeyword("NULL") {
		p.next()
		return &ast.Literal{Value: ast.Null()}, nil
	}
	return nil, p.errorf("unexpected token %q in expression", t.Value)
}

func (p *Parser) parseCase() (ast.Expr, error) {
	p.next() // CASE
	c := &ast.CaseExpr{}
	if !p.isKeyword("WHEN") {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Operand = operand
	}
	for p.isKeyword("WHEN") {
		p.next()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.isKeyword("THEN") {
			return nil, p.errorf("expected THEN")
		}
		p.next()
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, ast.WhenClause{Cond: cond, Then: then})
	}
	if p.isKeyword("ELSE") {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Else = e
	}
	if !p.isKeyword("END") {
		return nil, p.errorf("expected END to close CASE")
	}
	p.next()
	return c, nil
}

// parseIdentOrCall handles identifiers, dotted qualified identifiers,
// `tbl.*` wildcards, function calls and window functions.
func (p *Parser) parseIdentOrCall() (ast.Expr, error) {
	name, err := p.expectIdentText()
	if err != nil {
		return nil, err
	}
	parts := []string{name}
	for p.at(TokenDot) {
		p.next()
		if p.at(TokenStar) {
			p.next()
			return &ast.Identifier{Parts: parts, Wildcard: true}, nil
		}
		part, err := p.expectIdentText()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	if p.at(TokenLParen) {
		return p.parseFuncCallTail(parts[len(parts)-1])
	}

	return &ast.Identifier{Parts: parts}, nil
}

func (p *Parser) parseFuncCallTail(name string) (ast.Expr, error) {
	p.next() // (
	call := &ast.FuncCall{Name: strings.ToUpper(name)}
	if p.isKeyword("DISTINCT") {
		call.Distinct = true
		p.next()
	}
	if p.at(TokenStar) {
		p.next()
		call.Args = []ast.Expr{&ast.Identifier{Wildcard: true}}
	} else if !p.at(TokenRParen) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, e)
			if p.at(TokenComma) {
				p.next()
				continue
			}
			break
		}
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	if p.isKeyword("OVER") {
		p.next()
		if err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		w := &ast.WindowFunc{Func: call}
		if p.isKeyword("PARTITION") {
			p.next()
			if !p.isKeyword("BY") {
				return nil, p.errorf("expected BY after PARTITION")
			}
			p.next()
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				w.PartitionBy = append(w.PartitionBy, e)
				if p.at(TokenComma) {
					p.next()
					continue
				}
				break
			}
		}
		if p.isKeyword("ORDER") {
			p.next()
			if !p.isKeyword("BY") {
				return nil, p.errorf("expected BY after ORDER")
			}
			p.next()
			items, err := p.parseOrderByList()
			if err != nil {
				return nil, err
			}
			w.OrderBy = items
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return w, nil
	}
	return call, nil
}
