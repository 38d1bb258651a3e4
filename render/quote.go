package render

import "strings"

// QuoteIdentifier quotes a (possibly dotted) identifier piecewise, per
// dialect, so that `a.b` becomes `` `a`.`b` `` under MySQL and `"a"."b"`
// elsewhere (spec §6.1).
func QuoteIdentifier(dialect Dialect, ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = quoteOne(dialect, p)
	}
	return strings.Join(parts, ".")
}

func quoteOne(dialect Dialect, part string) string {
	if part == "*" {
		return part
	}
	switch dialect {
	case MySQL:
		return "`" + strings.ReplaceAll(part, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
	}
}

// Quote renders a string literal as a quoted SQL value (spec §6.1 `quote`).
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func placeholderMarker(dialect Dialect, ordinal int) string {
	if dialect == Postgres {
		return "$" + itoa(ordinal)
	}
	return "?"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
