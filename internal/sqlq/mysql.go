package sqlq

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type mysqlDialect struct {
	style literalStyle
}

var _ Dialect = (*mysqlDialect)(nil)
var _ DialectAlias = (*mysqlDialect)(nil)

func (d *mysqlDialect) Name() string       { return "mysql" }
func (d *mysqlDialect) DriverName() string { return "mysql" }
func (d *mysqlDialect) Aliases() []string  { return []string{"mariadb"} }

func (d *mysqlDialect) DSN(u *url.URL) (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	if cfg.DBName == "" {
		return "", fmt.Errorf("mysql url requires a database name in the path")
	}
	return cfg.FormatDSN(), nil
}

func (d *mysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *mysqlDialect) Placeholder(n int) string {
	return "?"
}

// backslash is the default LIKE escape in mysql
func (d *mysqlDialect) ContainsInsensitive(expr string) string {
	return "LOWER(" + expr + ") LIKE ?"
}

func (d *mysqlDialect) Limit(limit, offset int) string {
	if offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf("LIMIT %d", limit)
}

func (d *mysqlDialect) QuoteValue(val any) string {
	return d.style.quote(val)
}

func init() {
	RegisterDialect("mysql", &mysqlDialect{style: literalStyle{
		quoteString: backslashQuoteString,
		trueValue:   "TRUE",
		falseValue:  "FALSE",
		timeFormat:  "2006-01-02 15:04:05.999999",
	}})
}
