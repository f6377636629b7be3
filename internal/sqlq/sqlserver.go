package sqlq

import (
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
)

type sqlserverDialect struct {
	style literalStyle
}

var _ Dialect = (*sqlserverDialect)(nil)
var _ DialectAlias = (*sqlserverDialect)(nil)

func (d *sqlserverDialect) Name() string       { return "sqlserver" }
func (d *sqlserverDialect) DriverName() string { return "sqlserver" }
func (d *sqlserverDialect) Aliases() []string  { return []string{"mssql"} }

func (d *sqlserverDialect) DSN(u *url.URL) (string, error) {
	dsn := *u
	dsn.Scheme = "sqlserver"
	return dsn.String(), nil
}

func (d *sqlserverDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *sqlserverDialect) Placeholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

func (d *sqlserverDialect) ContainsInsensitive(expr string) string {
	return "LOWER(" + expr + `) LIKE ? ESCAPE '\'`
}

func (d *sqlserverDialect) Limit(limit, offset int) string {
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}

func (d *sqlserverDialect) QuoteValue(val any) string {
	return d.style.quote(val)
}

func init() {
	RegisterDialect("sqlserver", &sqlserverDialect{style: literalStyle{
		quoteString: func(s string) string { return "N" + doubleQuoteString(s) },
		trueValue:   "1",
		falseValue:  "0",
		timeFormat:  "2006-01-02 15:04:05.999999",
	}})
}
