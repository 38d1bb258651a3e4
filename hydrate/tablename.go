package hydrate

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// TableNameFor derives the default table name for a Go struct type: snake
// case its name, then pluralise (spec's DOMAIN STACK calls for
// pluralising/singularising struct type names to default table names).
// Callers pass this straight to query.FromTable.
func TableNameFor(entityType reflect.Type) string {
	for entityType != nil && entityType.Kind() == reflect.Ptr {
		entityType = entityType.Elem()
	}
	return inflection.Plural(toSnakeCase(entityType.Name()))
}

func toSnakeCase(name string) string {
	var sb strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
