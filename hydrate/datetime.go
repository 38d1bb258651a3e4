package hydrate

import (
	"reflect"
	"time"

	"github.com/omniql-engine/sqlcore/ast"
)

// millisThreshold is the magnitude above which an integer KindInt value is
// read as Unix milliseconds instead of seconds (spec §4.5: "detected when
// magnitude ≥ 10^11" — a seconds timestamp for any date humans care about
// stays below this, a milliseconds one is always above it).
const millisThreshold = 100_000_000_000

// DatetimeConverter implements the value-conversion contract for
// time.Time-typed fields (spec §4.5): strings are parsed in sqlTZ and
// reinterpreted into appTZ, integers are Unix seconds or milliseconds
// depending on magnitude, and floats carry sub-second precision as
// fractional seconds since the epoch, all in UTC.
func DatetimeConverter(sqlTZ, appTZ *time.Location) Converter {
	if sqlTZ == nil {
		sqlTZ = time.UTC
	}
	if appTZ == nil {
		appTZ = time.UTC
	}
	return func(v ast.Value, target reflect.Type) (any, bool, error) {
		if target != timeType {
			return nil, false, nil
		}
		switch v.Kind {
		case ast.KindNull:
			return time.Time{}, true, nil
		case ast.KindDate, ast.KindTime, ast.KindDateTime:
			return v.Time, true, nil
		case ast.KindInt:
			if abs(v.Int) >= millisThreshold {
				return time.UnixMilli(v.Int).In(appTZ), true, nil
			}
			return time.Unix(v.Int, 0).In(appTZ), true, nil
		case ast.KindFloat:
			sec := int64(v.Float)
			nsec := int64((v.Float - float64(sec)) * float64(time.Second))
			return time.Unix(sec, nsec).In(appTZ), true, nil
		case ast.KindString:
			t, err := parseInLocation(v.Str, sqlTZ)
			if err != nil {
				return nil, true, err
			}
			return t.In(appTZ), true, nil
		}
		return nil, false, nil
	}
}

// sqlTimeLayouts are tried in order against a KindString datetime value;
// the virtual engine and the render package both already normalise
// DATETIME literals to one of these on the way in, so this list mirrors
// what this package can expect to see come back out.
var sqlTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"15:04:05",
}

func parseInLocation(s string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range sqlTimeLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
