package table

import (
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

const selectOptionsMessage = "select options to filter on"

// splitOptions separates the empty-bucket option (nil) from the values.
func splitOptions(options []any, mapValue func(any) any) ([]any, bool) {
	var vals []any
	var hasNull bool
	seen := make(map[any]bool)
	for _, o := range options {
		if isNil(o) {
			hasNull = true
			continue
		}
		if mapValue != nil {
			o = mapValue(o)
		}
		key := normalizeKey(o)
		if seen[key] {
			continue
		}
		seen[key] = true
		vals = append(vals, o)
	}
	return vals, hasNull
}

func distinctOptions(options []any) int {
	vals, hasNull := splitOptions(options, nil)
	if hasNull {
		return len(vals) + 1
	}
	return len(vals)
}

func impossibleBehavior(member string, b Behavior) error {
	return internal.ConfigErrorf("field %s holds a single value and cannot filter by %s", member, b)
}

func unknownBehavior(member string, b Behavior) error {
	return internal.ConfigErrorf("field %s does not support filter behavior %q", member, b)
}

// singleValuedSupports is the behavior set of kinds holding at most one value per row.
func singleValuedSupports(b Behavior) bool {
	switch b {
	case AlwaysMatch, HasAny, HasNone, HasSomeOf, DoesntHaveAnyOf, DoesntHaveAllOf:
		return true
	}
	return false
}

// singleValuedCriterion maps a behavior onto a nullable scalar column.
func singleValuedCriterion(member, col string, c Criterion, mapValue func(any) any) (sqlq.Fragment, error) {
	switch c.Behavior {
	case AlwaysMatch, "":
		return sqlq.Empty, nil
	case HasAny:
		return sqlq.IsNotNull(col), nil
	case HasNone:
		return sqlq.IsNull(col), nil
	case HasAllOf:
		return sqlq.Empty, impossibleBehavior(member, c.Behavior)
	case HasSomeOf, DoesntHaveAnyOf, DoesntHaveAllOf:
	default:
		return sqlq.Empty, unknownBehavior(member, c.Behavior)
	}
	if len(c.Options) == 0 {
		return sqlq.Problem(selectOptionsMessage), nil
	}
	vals, hasNull := splitOptions(c.Options, mapValue)
	in := sqlq.Empty
	if len(vals) > 0 {
		in = sqlq.In(col, vals)
	}
	switch c.Behavior {
	case HasSomeOf:
		if hasNull {
			return sqlq.Or(sqlq.IsNull(col), in), nil
		}
		return in, nil
	case DoesntHaveAllOf:
		// one value can never be several distinct options at once
		if distinctOptions(c.Options) > 1 {
			return sqlq.True, nil
		}
	}
	if hasNull {
		if len(vals) == 0 {
			return sqlq.IsNotNull(col), nil
		}
		return sqlq.And(sqlq.IsNotNull(col), sqlq.NotIn(col, vals)), nil
	}
	return sqlq.Or(sqlq.IsNull(col), sqlq.NotIn(col, vals)), nil
}
