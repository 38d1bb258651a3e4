package render

import "github.com/omniql-engine/sqlcore/ast"

// columnType maps a universal ColumnKind to its per-dialect SQL type name,
// generalised from the teacher's mapping.TypeMap (engine/mapping/types.go),
// which keyed the same dialects by string type name instead of ast.ColumnKind.
func columnType(dialect Dialect, kind ast.ColumnKind, scale int, idx ast.IndexHint) string {
	auto := idx == ast.IndexPrimary
	switch kind {
	case ast.ColInt:
		switch dialect {
		case Postgres:
			if auto {
				return "SERIAL"
			}
			return "INTEGER"
		case MySQL:
			if auto {
				return "INT AUTO_INCREMENT"
			}
			return "INT"
		case SQLite:
			if auto {
				return "INTEGER"
			}
			return "INTEGER"
		case SQLServer:
			if auto {
				return "INT IDENTITY(1,1)"
			}
			return "INT"
		case Oracle:
			return "NUMBER(10)"
		default:
			return "INTEGER"
		}
	case ast.ColFloat:
		switch dialect {
		case MySQL:
			return "DOUBLE"
		case Oracle:
			return "BINARY_DOUBLE"
		default:
			return "DOUBLE PRECISION"
		}
	case ast.ColDecimal:
		s := scale
		if s < 0 {
			s = 2
		}
		switch dialect {
		case MySQL, Postgres, SQLServer:
			return "DECIMAL(18," + itoa(s) + ")"
		case Oracle:
			return "NUMBER(18," + itoa(s) + ")"
		default:
			return "NUMERIC(18," + itoa(s) + ")"
		}
	case ast.ColText:
		switch dialect {
		case MySQL:
			return "TEXT"
		default:
			return "TEXT"
		}
	case ast.ColBinary:
		switch dialect {
		case Postgres:
			return "BYTEA"
		case MySQL, SQLite:
			return "BLOB"
		case SQLServer:
			return "VARBINARY(MAX)"
		case Oracle:
			return "BLOB"
		default:
			return "BLOB"
		}
	case ast.ColDate:
		return "DATE"
	case ast.ColTime:
		return "TIME"
	case ast.ColDateTime:
		switch dialect {
		case MySQL:
			return "DATETIME"
		case SQLServer:
			return "DATETIME2"
		default:
			return "TIMESTAMP"
		}
	}
	return "TEXT"
}

func (r *renderer) createTable(n *ast.CreateTableStatement) error {
	r.sb.WriteString("CREATE TABLE ")
	if n.IfNotExists {
		r.sb.WriteString("IF NOT EXISTS ")
	}
	r.sb.WriteString(QuoteIdentifier(r.dialect, n.Table))
	r.sb.WriteString(" (")
	for i, c := range n.Columns {
		if i > 0 {
			r.sb.WriteString(", ")
		}
		r.sb.WriteString(QuoteIdentifier(r.dialect, c.Name))
		r.sb.WriteString(" ")
		r.sb.WriteString(columnType(r.dialect, c.Kind, c.Scale, c.Index))
		switch c.Index {
		case ast.IndexPrimary:
			r.sb.WriteString(" PRIMARY KEY")
		case ast.IndexUnique:
			r.sb.WriteString(" UNIQUE")
		}
	}
	r.sb.WriteString(")")
	return nil
}

func (r *renderer) createIndex(n *ast.CreateIndexStatement) error {
	r.sb.WriteString("CREATE ")
	if n.Unique {
		r.sb.WriteString("UNIQUE ")
	}
	r.sb.WriteString("INDEX ")
	r.sb.WriteString(QuoteIdentifier(r.dialect, n.Name))
	r.sb.WriteString(" ON ")
	r.sb.WriteString(QuoteIdentifier(r.dialect, n.Table))
	r.sb.WriteString(" (")
	for i, c := range n.Columns {
		if i > 0 {
			r.sb.WriteString(", ")
		}
		r.sb.WriteString(QuoteIdentifier(r.dialect, c))
	}
	r.sb.WriteString(")")
	return nil
}
