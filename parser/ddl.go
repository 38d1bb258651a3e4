package parser

import (
	"strconv"
	"strings"

	"github.com/omniql-engine/sqlcore/ast"
)

// columnKindOf maps a DDL type keyword to the engine's ColumnKind, per the
// mapping table in spec §4.3.6.
func columnKindOf(typeName string) ast.ColumnKind {
	switch strings.ToUpper(typeName) {
	case "INTEGER", "INT", "SMALLINT", "TINYINT", "BIGINT":
		return ast.ColInt
	case "REAL", "FLOAT", "DOUBLE":
		return ast.ColFloat
	case "DECIMAL", "NUMERIC":
		return ast.ColDecimal
	case "TEXT", "VARCHAR", "CHAR", "CLOB":
		return ast.ColText
	case "BLOB", "BINARY", "VARBINARY":
		return ast.ColBinary
	case "DATE":
		return ast.ColDate
	case "TIME":
		return ast.ColTime
	case "DATETIME", "TIMESTAMP":
		return ast.ColDateTime
	}
	return ast.ColText
}

func (p *Parser) parseCreate() (ast.Statement, error) {
	p.next() // CREATE
	switch {
	case p.isKeyword("TABLE"):
		return p.parseCreateTable()
	case p.isKeyword("UNIQUE"):
		p.next()
		if !p.isKeyword("INDEX") {
			return nil, p.errorf("expected INDEX after CREATE UNIQUE")
		}
		return p.parseCreateIndex(true)
	case p.isKeyword("INDEX"):
		return p.parseCreateIndex(false)
	}
	return nil, p.errorf("unsupported CREATE statement")
}

func (p *Parser) parseDrop() (ast.Statement, error) {
	p.next() // DROP
	switch {
	case p.isKeyword("TABLE"):
		p.next()
		ifExists := p.consumeIfExists()
		name, err := p.expectIdentText()
		if err != nil {
			return nil, err
		}
		return &ast.DropTableStatement{Table: name, IfExists: ifExists}, nil
	case p.isKeyword("INDEX"):
		p.next()
		name, err := p.expectIdentText()
		if err != nil {
			return nil, err
		}
		table := ""
		if p.isKeyword("ON") {
			p.next()
			table, err = p.expectIdentText()
			if err != nil {
				return nil, err
			}
		}
		return &ast.DropIndexStatement{Name: name, Table: table}, nil
	}
	return nil, p.errorf("unsupported DROP statement")
}

func (p *Parser) consumeIfExists() bool {
	if p.isKeyword("IF") {
		p.next()
		if p.isKeyword("EXISTS") {
			p.next()
			return true
		}
	}
	return false
}

func (p *Parser) parseCreateTable() (ast.Statement, error) {
	p.next() // TABLE
	ifNotExists := false
	if p.isKeyword("IF") {
		p.next()
		if !p.isKeyword("NOT") {
			return nil, p.errorf("expected NOT after IF in CREATE TABLE")
		}
		p.next()
		if !p.isKeyword("EXISTS") {
			return nil, p.errorf("expected EXISTS after IF NOT")
		}
		p.next()
		ifNotExists = true
	}
	table, err := p.expectIdentText()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	stmt := &ast.CreateTableStatement{Table: table, IfNotExists: ifNotExists}
	for {
		if p.isKeyword("PRIMARY") {
			p.next()
			if !p.isKeyword("KEY") {
				return nil, p.errorf("expected KEY after PRIMARY")
			}
			p.next()
			if err := p.expect(TokenLParen); err != nil {
				return nil, err
			}
			for {
				colName, err := p.expectIdentText()
				if err != nil {
					return nil, err
				}
				markPrimary(stmt.Columns, colName)
				if p.at(TokenComma) {
					p.next()
					continue
				}
				break
			}
			if err := p.expect(TokenRParen); err != nil {
				return nil, err
			}
		} else {
			colName, err := p.expectIdentText()
			if err != nil {
				return nil, err
			}
			typeName, err := p.expectIdentText()
			if err != nil {
				return nil, err
			}
			def := ast.ColumnDef{Name: colName, Kind: columnKindOf(typeName), Scale: -1}
			if p.at(TokenLParen) {
				p.next()
				p.next() // precision or length
				if p.at(TokenComma) {
					p.next()
					if n, err := strconv.Atoi(p.cur().Value); err == nil {
						def.Scale = n
					}
					p.next()
				}
				if err := p.expect(TokenRParen); err != nil {
					return nil, err
				}
			}
			for p.isKeyword("PRIMARY") || p.isKeyword("UNIQUE") || p.isKeyword("NOT") {
				if p.isKeyword("PRIMARY") {
					p.next()
					p.skipKeyword("KEY")
					def.Index = ast.IndexPrimary
				} else if p.isKeyword("UNIQUE") {
					p.next()
					if def.Index == ast.IndexNone {
						def.Index = ast.IndexUnique
					}
				} else if p.isKeyword("NOT") {
					p.next()
					p.skipKeyword("NULL")
				}
			}
			stmt.Columns = append(stmt.Columns, def)
		}
		if p.at(TokenComma) {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return stmt, nil
}

func markPrimary(cols []ast.ColumnDef, name string) {
	for i := range cols {
		if cols[i].Name == name {
			cols[i].Index = ast.IndexPrimary
		}
	}
}

func (p *Parser) parseCreateIndex(unique bool) (ast.Statement, error) {
	p.next() // INDEX
	name, err := p.expectIdentText()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("ON") {
		return nil, p.errorf("expected ON in CREATE INDEX")
	}
	p.next()
	table, err := p.expectIdentText()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	var cols []string
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
	return &ast.CreateIndexStatement{Name: name, Table: table, Columns: cols, Unique: unique}, nil
}
