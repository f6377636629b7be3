package sqlq

import (
	"strings"
)

// Fragment is a piece of SQL using ? placeholders for Args. Problems carries user-facing
// messages for filters that could not be applied; such fragments render as always-true.
type Fragment struct {
	SQL      string
	Args     []any
	Problems []string
}

// Empty is the opt-out fragment. Combinators skip it.
var Empty = Fragment{}

// True and False are portable constant predicates.
var (
	True  = Fragment{SQL: "1=1"}
	False = Fragment{SQL: "1=0"}
)

// IsEmpty returns true for the opt-out fragment.
func (f Fragment) IsEmpty() bool {
	return f.SQL == ""
}

func (f Fragment) String() string {
	return f.SQL
}

// Raw returns trusted SQL without arguments.
func Raw(sql string) Fragment {
	return Fragment{SQL: sql}
}

// Expr returns SQL with arguments bound to its ? placeholders.
func Expr(sql string, args ...any) Fragment {
	return Fragment{SQL: sql, Args: args}
}

// Problem returns an always-true fragment carrying a user-facing message.
func Problem(message string) Fragment {
	return Fragment{SQL: True.SQL, Problems: []string{message}}
}

func join(op string, frags []Fragment) Fragment {
	var parts []Fragment
	for _, f := range frags {
		if !f.IsEmpty() {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return Empty
	case 1:
		return parts[0]
	}
	var b Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString(" " + op + " ")
		}
		b.WriteString("(").Write(p).WriteString(")")
	}
	return b.Fragment()
}

// And joins the non-empty fragments with AND.
func And(frags ...Fragment) Fragment {
	return join("AND", frags)
}

// Or joins the non-empty fragments with OR.
func Or(frags ...Fragment) Fragment {
	return join("OR", frags)
}

// Not negates a fragment. Negating the empty fragment stays empty.
func Not(f Fragment) Fragment {
	if f.IsEmpty() {
		return Empty
	}
	var b Builder
	return b.WriteString("NOT (").Write(f).WriteString(")").Fragment()
}

// Exists wraps a subquery.
func Exists(sub Fragment) Fragment {
	var b Builder
	return b.WriteString("EXISTS (").Write(sub).WriteString(")").Fragment()
}

// NotExists wraps a subquery.
func NotExists(sub Fragment) Fragment {
	var b Builder
	return b.WriteString("NOT EXISTS (").Write(sub).WriteString(")").Fragment()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// In returns expr IN (values). No values never matches.
func In(expr string, values []any) Fragment {
	if len(values) == 0 {
		return False
	}
	return Expr(expr+" IN ("+placeholders(len(values))+")", values...)
}

// NotIn returns expr NOT IN (values). No values always matches.
func NotIn(expr string, values []any) Fragment {
	if len(values) == 0 {
		return True
	}
	return Expr(expr+" NOT IN ("+placeholders(len(values))+")", values...)
}

// IsNull returns expr IS NULL.
func IsNull(expr string) Fragment {
	return Raw(expr + " IS NULL")
}

// IsNotNull returns expr IS NOT NULL.
func IsNotNull(expr string) Fragment {
	return Raw(expr + " IS NOT NULL")
}

// Join concatenates the non-empty fragments with sep.
func Join(sep string, frags ...Fragment) Fragment {
	var b Builder
	n := 0
	for _, f := range frags {
		if f.IsEmpty() {
			continue
		}
		if n > 0 {
			b.WriteString(sep)
		}
		b.Write(f)
		n++
	}
	return b.Fragment()
}

// Builder assembles a fragment piece by piece.
type Builder struct {
	sql      strings.Builder
	args     []any
	problems []string
}

// WriteString appends trusted SQL.
func (b *Builder) WriteString(sql string) *Builder {
	b.sql.WriteString(sql)
	return b
}

// Write appends a fragment with its arguments and problems.
func (b *Builder) Write(f Fragment) *Builder {
	b.sql.WriteString(f.SQL)
	b.args = append(b.args, f.Args...)
	b.problems = append(b.problems, f.Problems...)
	return b
}

// Len returns the length of the SQL written so far.
func (b *Builder) Len() int {
	return b.sql.Len()
}

// Fragment returns the assembled fragment.
func (b *Builder) Fragment() Fragment {
	return Fragment{SQL: b.sql.String(), Args: b.args, Problems: b.problems}
}
