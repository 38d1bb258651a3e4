package parser

import "github.com/omniql-engine/sqlcore/ast"

func (p *Parser) parseInsert() (ast.Statement, error) {
	p.next() // INSERT
	if !p.isKeyword("INTO") {
		return nil, p.errorf("expected INTO after INSERT")
	}
	p.next()
	table, err := p.expectIdentText()
	if err != nil {
		return nil, err
	}
	stmt := &ast.InsertStatement{Table: table}

	if p.at(TokenLParen) {
		p.next()
		for {
			c, err := p.expectIdentText()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, c)
			if p.at(TokenComma) {
				p.next()
				continue
			}
			break
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
	}

	if p.isKeyword("SELECT") || p.isKeyword("WITH") {
		sel, err := p.parseSetOpChain()
		if err != nil {
			return nil, err
		}
		s, ok := sel.(*ast.SelectStatement)
		if !ok {
			return nil, p.errorf("INSERT ... SELECT requires a plain SELECT")
		}
		stmt.Select = s
		return stmt, nil
	}

	if !p.isKeyword("VALUES") {
		return nil, p.errorf("expected VALUES or SELECT after INSERT INTO target")
	}
	p.next()
	for {
		if err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		var row []ast.Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if p.at(TokenComma) {
				p.next()
				continue
			}
			break
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
		if p.at(TokenComma) {
			p.next()
			continue
		}
		break
	}
	return stmt, nil
}

func (p *Parser) parseUpdate() (ast.Statement, error) {
	p.next() // UPDATE
	table, err := p.expectIdentText()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("SET") {
		return nil, p.errorf("expected SET after UPDATE target")
	}
	p.next()
	stmt := &ast.UpdateStatement{Table: table}
	for {
		col, err := p.expectIdentText()
		if err != nil {
			return nil, err
		}
		if !(p.at(TokenOp) && p.cur().Value == "=") {
			return nil, p.errorf("expected = in SET assignment")
		}
		p.next()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Set = append(stmt.Set, ast.Assignment{Column: col, Value: val})
		if p.at(TokenComma) {
			p.next()
			continue
		}
		break
	}
	if p.isKeyword("WHERE") {
		p.next()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = w
	}
	return stmt, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	p.next() // DELETE
	if p.isKeyword("FROM") {
		p.next()
	}
	table, err := p.expectIdentText()
	if err != nil {
		return nil, err
	}
	stmt := &ast.DeleteStatement{Table: table}
	if p.isKeyword("WHERE") {
		p.next()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = w
	}
	return stmt, nil
}
