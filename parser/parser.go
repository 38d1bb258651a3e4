// Package parser implements the lexer and recursive-descent parser that
// turns SQL text into the ast package's tagged-variant tree (spec §4.1),
// plus a cache of parsed ASTs keyed by source text (spec §2, §5).
package parser

import (
	"strconv"
	"strings"

	"github.com/omniql-engine/sqlcore/ast"
	"github.com/omniql-engine/sqlcore/internal/errs"
)

type Parser struct {
	tokens []Token
	pos    int
	posPlaceholderSeq int
}

// Parse tokenizes and parses a complete SQL statement.
func Parse(sql string) (ast.Statement, error) {
	toks, err := Tokenize(sql)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if !p.at(TokenSemicolon) && !p.atEOF() {
		return nil, p.errorf("unexpected trailing input")
	}
	return stmt, nil
}

// ParseExpressionFragment parses a standalone expression, used by the query
// builder to compose WHERE/HAVING fragments supplied as raw SQL text.
func ParseExpressionFragment(fragment string) (ast.Expr, error) {
	toks, err := Tokenize(fragment)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input in expression fragment")
	}
	return e, nil
}

// ParseOrderByFragment parses a comma-separated list of order items without
// the leading ORDER BY keywords, e.g. "name DESC, id".
func ParseOrderByFragment(fragment string) ([]ast.OrderByItem, error) {
	toks, err := Tokenize(fragment)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: toks}
	items, err := p.parseOrderByList()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input in ORDER BY fragment")
	}
	return items, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.isKeyword("WITH"):
		return p.parseWith()
	case p.isKeyword("SELECT"):
		return p.parseSetOpChain()
	case p.isKeyword("INSERT"):
		return p.parseInsert()
	case p.isKeyword("UPDATE"):
		return p.parseUpdate()
	case p.isKeyword("DELETE"):
		return p.parseDelete()
	case p.isKeyword("CREATE"):
		return p.parseCreate()
	case p.isKeyword("DROP"):
		return p.parseDrop()
	}
	return nil, p.errorf("expected a statement keyword")
}

// parseSetOpChain parses a SELECT possibly followed by UNION/INTERSECT/EXCEPT
// branches, left-associative.
func (p *Parser) parseSetOpChain() (ast.Statement, error) {
	left, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	var result ast.Statement = left
	for {
		var op ast.SetOp
		switch {
		case p.isKeyword("UNION"):
			op = ast.SetUnion
		case p.isKeyword("INTERSECT"):
			op = ast.SetIntersect
		case p.isKeyword("EXCEPT"):
			op = ast.SetExcept
		default:
			return result, nil
		}
		p.next()
		all := false
		if p.isKeyword("ALL") {
			all = true
			p.next()
		}
		right, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		result = &ast.UnionNode{Op: op, All: all, Left: result, Right: right}
	}
}

func (p *Parser) parseWith() (*ast.WithStatement, error) {
	p.next() // WITH
	recursive := false
	if p.isKeyword("RECURSIVE") {
		recursive = true
		p.next()
	}
	var ctes []ast.CTE
	for {
		name, err := p.expectIdentText()
		if err != nil {
			return nil, err
		}
		var cols []string
		if p.at(TokenLParen) {
			p.next()
			for {
				c, err := p.expectIdentText()
				if err != nil {
					return nil, err
				}
				cols = append(cols, c)
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
		if !p.isKeyword("AS") {
			return nil, p.errorf("expected AS in CTE definition")
		}
		p.next()
		if err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		inner, err := p.parseSetOpChain()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		ctes = append(ctes, ast.CTE{Name: name, Columns: cols, Query: inner})
		if p.at(TokenComma) {
			p.next()
			continue
		}
		break
	}
	inner, err := p.parseSetOpChain()
	if err != nil {
		return nil, err
	}
	return &ast.WithStatement{CTEs: ctes, Recursive: recursive, Query: inner}, nil
}

func (p *Parser) parseSelect() (*ast.SelectStatement, error) {
	if !p.isKeyword("SELECT") {
		return nil, p.errorf("expected SELECT")
	}
	p.next()
	stmt := &ast.SelectStatement{}
	if p.isKeyword("DISTINCT") {
		stmt.Distinct = true
		p.next()
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return nil, err
	}
	stmt.Columns = cols

	if p.isKeyword("FROM") {
		p.next()
		from, err := p.parseFromItem()
		if err != nil {
			return nil, err
		}
		stmt.From = from
		joins, err := p.parseJoins()
		if err != nil {
			return nil, err
		}
		stmt.Joins = joins
	}

	if p.isKeyword("WHERE") {
		p.next()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = w
	}

	if p.isKeyword("GROUP") {
		p.next()
		if !p.isKeyword("BY") {
			return nil, p.errorf("expected BY after GROUP")
		}
		p.next()
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if p.at(TokenComma) {
				p.next()
				continue
			}
			break
		}
	}

	if p.isKeyword("HAVING") {
		p.next()
		h, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Having = h
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
		stmt.OrderBy = items
	}

	if p.isKeyword("LIMIT") {
		p.next()
		e, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		stmt.Limit = e
	}
	if p.isKeyword("OFFSET") {
		p.next()
		e, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		stmt.Offset = e
	}
	return stmt, nil
}

func (p *Parser) parseColumnList() ([]ast.ColumnNode, error) {
	var cols []ast.ColumnNode
	for {
		col, err := p.parseColumn()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.at(TokenComma) {
			p.next()
			continue
		}
		break
	}
	return cols, nil
}

func (p *Parser) parseColumn() (ast.ColumnNode, error) {
	e, err := p.parseExpr()
	if err != nil {
		return ast.ColumnNode{}, err
	}
	alias := ""
	if p.isKeyword("AS") {
		p.next()
		alias, err = p.expectIdentText()
		if err != nil {
			return ast.ColumnNode{}, err
		}
	} else if p.at(TokenIdent) && !isKeyword(p.cur().Value) {
		alias = p.cur().Value
		p.next()
	}
	return ast.ColumnNode{Expr: e, Alias: alias}, nil
}

func (p *Parser) parseFromItem() (ast.FromItem, error) {
	if p.at(TokenLParen) {
		p.next()
		inner, err := p.parseSetOpChain()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		alias := p.parseOptionalAlias()
		return &ast.SubqueryRef{Query: inner, Alias: alias}, nil
	}
	name, err := p.expectIdentText()
	if err != nil {
		return nil, err
	}
	for p.at(TokenDot) {
		p.next()
		part, err := p.expectIdentText()
		if err != nil {
			return nil, err
		}
		name = name + "." + part
	}
	alias := p.parseOptionalAlias()
	return &ast.TableRef{Name: name, Alias: alias}, nil
}

func (p *Parser) parseOptionalAlias() string {
	if p.isKeyword("AS") {
		p.next()
		if id, err := p.expectIdentText(); err == nil {
			return id
		}
		return ""
	}
	if p.at(TokenIdent) && !isKeyword(p.cur().Value) {
		id := p.cur().Value
		p.next()
		return id
	}
	return ""
}

func (p *Parser) parseJoins() ([]ast.JoinNode, error) {
	var joins []ast.JoinNode
	for {
		var kind ast.JoinKind
		switch {
		case p.isKeyword("JOIN"):
			kind = ast.JoinInner
			p.next()
		case p.isKeyword("INNER"):
			p.next()
			if !p.isKeyword("JOIN") {
				return nil, p.errorf("expected JOIN after INNER")
			}
			p.next()
			kind = ast.JoinInner
		case p.isKeyword("LEFT"):
			p.next()
			p.skipKeyword("OUTER")
			if !p.isKeyword("JOIN") {
				return nil, p.errorf("expected JOIN after LEFT")
			}
			p.next()
			kind = ast.JoinLeft
		case p.isKeyword("RIGHT"):
			p.next()
			p.skipKeyword("OUTER")
			if !p.isKeyword("JOIN") {
				return nil, p.errorf("expected JOIN after RIGHT")
			}
			p.next()
			kind = ast.JoinRight
		case p.isKeyword("FULL"):
			p.next()
			p.skipKeyword("OUTER")
			if !p.isKeyword("JOIN") {
				return nil, p.errorf("expected JOIN after FULL")
			}
			p.next()
			kind = ast.JoinFull
		case p.isKeyword("CROSS"):
			p.next()
			if !p.isKeyword("JOIN") {
				return nil, p.errorf("expected JOIN after CROSS")
			}
			p.next()
			kind = ast.JoinCross
		default:
			return joins, nil
		}
		right, err := p.parseFromItem()
		if err != nil {
			return nil, err
		}
		var on ast.Expr
		if kind != ast.JoinCross {
			if !p.isKeyword("ON") {
				return nil, p.errorf("expected ON for join condition")
			}
			p.next()
			on, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		joins = append(joins, ast.JoinNode{Kind: kind, Right: right, On: on})
	}
}

func (p *Parser) skipKeyword(kw string) {
	if p.isKeyword(kw) {
		p.next()
	}
}

func (p *Parser) parseOrderByList() ([]ast.OrderByItem, error) {
	var items []ast.OrderByItem
	for {
		if p.at(TokenNumber) {
			n, err := strconv.Atoi(p.cur().Value)
			if err != nil {
				return nil, p.errorf("invalid ordinal in ORDER BY: %s", p.cur().Value)
			}
			p.next()
			desc := p.consumeDirection()
			items = append(items, ast.OrderByItem{Index: n, Desc: desc})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			desc := p.consumeDirection()
			items = append(items, ast.OrderByItem{Expr: e, Desc: desc})
		}
		if p.at(TokenComma) {
			p.next()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) consumeDirection() bool {
	if p.isKeyword("DESC") {
		p.next()
		return true
	}
	if p.isKeyword("ASC") {
		p.next()
	}
	return false
}

// --- token-stream helpers ---

func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) next() Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) at(k TokenKind) bool { return p.cur().Kind == k }
func (p *Parser) atEOF() bool         { return p.cur().Kind == TokenEOF }

func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == TokenIdent && strings.EqualFold(t.Value, kw)
}

func (p *Parser) expect(k TokenKind) error {
	if !p.at(k) {
		return p.errorf("unexpected token %q", p.cur().Value)
	}
	p.next()
	return nil
}

func (p *Parser) expectIdentText() (string, error) {
	t := p.cur()
	if t.Kind != TokenIdent && t.Kind != TokenQuotedIdent {
		return "", p.errorf("expected identifier, got %q", t.Value)
	}
	p.next()
	return t.Value, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	t := p.cur()
	return errs.New(errs.SyntaxError, t.Value, format+" (line %d, column %d)", append(args, t.Line, t.Column)...)
}
