package sqlq

import (
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteDialect struct {
	style literalStyle
}

var _ Dialect = (*sqliteDialect)(nil)
var _ DialectAlias = (*sqliteDialect)(nil)

func (d *sqliteDialect) Name() string       { return "sqlite" }
func (d *sqliteDialect) DriverName() string { return "sqlite" }
func (d *sqliteDialect) Aliases() []string  { return []string{"sqlite3"} }

// DSN accepts sqlite::memory: and sqlite:///path/to/file.db
func (d *sqliteDialect) DSN(u *url.URL) (string, error) {
	path := u.Host + u.Path
	if path == "" {
		path = u.Opaque
	}
	if path == "" {
		return "", fmt.Errorf("sqlite url requires a path")
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, nil
}

func (d *sqliteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *sqliteDialect) Placeholder(n int) string {
	return "?"
}

func (d *sqliteDialect) ContainsInsensitive(expr string) string {
	return "LOWER(" + expr + `) LIKE ? ESCAPE '\'`
}

func (d *sqliteDialect) Limit(limit, offset int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (d *sqliteDialect) QuoteValue(val any) string {
	return d.style.quote(val)
}

func init() {
	RegisterDialect("sqlite", &sqliteDialect{style: literalStyle{
		quoteString: doubleQuoteString,
		trueValue:   "1",
		falseValue:  "0",
		timeFormat:  "2006-01-02 15:04:05.999999",
	}})
}
