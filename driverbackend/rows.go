package driverbackend

import "database/sql"

// driverRows adapts *sql.Rows to query.Rows; the method sets already match
// (Scan's destination shape is identical), so this is a thin forwarding
// wrapper rather than a re-implementation.
type driverRows struct {
	rows *sql.Rows
}

func (r *driverRows) Next() bool { return r.rows.Next() }

func (r *driverRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

func (r *driverRows) Columns() ([]string, error) { return r.rows.Columns() }

func (r *driverRows) Err() error { return r.rows.Err() }

func (r *driverRows) Close() error { return r.rows.Close() }

// driverExecResult carries the affected-row count and last-insert id for
// INSERT/UPDATE/DELETE/DDL statements, which have no rows to scan (mirrors
// vengine's execResult for the in-memory backend).
type driverExecResult struct {
	affected     int64
	lastInsertID int64
}

func (r *driverExecResult) Next() bool { return false }

func (r *driverExecResult) Scan(dest ...any) error {
	if len(dest) == 1 {
		if p, ok := dest[0].(*int64); ok {
			*p = r.affected
			return nil
		}
	}
	return nil
}

func (r *driverExecResult) Columns() ([]string, error) { return nil, nil }

func (r *driverExecResult) Err() error { return nil }

func (r *driverExecResult) Close() error { return nil }

// Affected returns the row count reported by the underlying driver for the
// statement that produced this result.
func (r *driverExecResult) Affected() int64 { return r.affected }

// LastInsertID returns the driver-reported last insert id, when the
// underlying driver supports it (many do not, and report 0).
func (r *driverExecResult) LastInsertID() int64 { return r.lastInsertID }
