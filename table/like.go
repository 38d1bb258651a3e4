package table

import (
	"regexp"
	"strings"
)

// LikeToRegexp compiles a SQL LIKE pattern (`%` any run, `_` any single
// char) into an anchored, case-sensitive regexp; exported for the virtual
// engine's row-by-row LIKE fallback (spec §4.3.2).
func LikeToRegexp(pattern string) *regexp.Regexp { return likeToRegexp(pattern) }

// likeToRegexp compiles a SQL LIKE pattern (`%` any run, `_` any single
// char) into an anchored, case-sensitive regexp.
func likeToRegexp(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return regexp.MustCompile("$^") // matches nothing on malformed pattern
	}
	return re
}
