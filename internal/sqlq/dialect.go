package sqlq

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Dialect is the store-specific part of query rendering.
type Dialect interface {
	// Name is the unique name of the dialect which is also its url scheme.
	Name() string

	// DriverName is the database/sql driver name.
	DriverName() string

	// DSN converts a url for this dialect into a driver connection string.
	DSN(u *url.URL) (string, error)

	// QuoteIdentifier quotes a table, column or alias name.
	QuoteIdentifier(name string) string

	// Placeholder returns the placeholder for the n-th (1-based) argument.
	Placeholder(n int) string

	// ContainsInsensitive returns a predicate matching expr against one LIKE pattern argument case-insensitively.
	ContainsInsensitive(expr string) string

	// Limit returns the trailing clause that pages a query which already has an ORDER BY.
	Limit(limit, offset int) string

	// QuoteValue renders a value as a literal. It is only used for display and for trusted configuration values.
	QuoteValue(val any) string
}

// DialectAlias is implemented by dialects which accept more than one url scheme.
type DialectAlias interface {
	Aliases() []string
}

var dialectRegistry = map[string]Dialect{}
var dialectAliasRegistry = map[string]string{}

// RegisterDialect registers a dialect by name and aliases.
func RegisterDialect(name string, dialect Dialect) {
	dialectRegistry[name] = dialect
	if a, ok := dialect.(DialectAlias); ok {
		for _, alias := range a.Aliases() {
			dialectAliasRegistry[alias] = name
		}
	}
}

// GetDialect returns a registered dialect by name or alias.
func GetDialect(name string) (Dialect, error) {
	if d := dialectRegistry[name]; d != nil {
		return d, nil
	}
	if d := dialectRegistry[dialectAliasRegistry[name]]; d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("no dialect registered for %s", name)
}

// DialectForURL returns the dialect for the url scheme.
func DialectForURL(urlString string) (Dialect, *url.URL, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	d, err := GetDialect(u.Scheme)
	if err != nil {
		return nil, nil, err
	}
	return d, u, nil
}

// Dialects returns the names of the registered dialects.
func Dialects() []string {
	res := make([]string, 0, len(dialectRegistry))
	for name := range dialectRegistry {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Ident quotes and joins the non-empty parts with dots.
func Ident(d Dialect, parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			quoted = append(quoted, d.QuoteIdentifier(p))
		}
	}
	return strings.Join(quoted, ".")
}

// ContainsPattern returns a lower-cased LIKE pattern matching token anywhere, with wildcards escaped by backslash.
func ContainsPattern(token string) string {
	var sb strings.Builder
	sb.WriteByte('%')
	for _, r := range strings.ToLower(token) {
		switch r {
		case '%', '_', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('%')
	return sb.String()
}

// ContainsInsensitive returns a fragment matching expr against token case-insensitively.
func ContainsInsensitive(d Dialect, expr string, token string) Fragment {
	return Expr(d.ContainsInsensitive(expr), ContainsPattern(token))
}

// scanPlaceholders calls fn for every ? outside of quoted text and returns the rewritten sql.
func scanPlaceholders(sql string, fn func(n int) string) string {
	var sb strings.Builder
	var quote rune
	n := 0
	for _, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '[':
			quote = ']'
		case r == '?':
			n++
			sb.WriteString(fn(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Bind renders a fragment for the dialect's placeholder style.
func Bind(d Dialect, f Fragment) (string, []any) {
	if d.Placeholder(1) == "?" {
		return f.SQL, f.Args
	}
	return scanPlaceholders(f.SQL, d.Placeholder), f.Args
}

// Interpolate renders a fragment with its arguments inlined as literals. The result is for display only.
func Interpolate(d Dialect, f Fragment) string {
	return scanPlaceholders(f.SQL, func(n int) string {
		if n-1 < len(f.Args) {
			return d.QuoteValue(f.Args[n-1])
		}
		return "?"
	})
}
