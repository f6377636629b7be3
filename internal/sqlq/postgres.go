package sqlq

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/lib/pq"
)

var pgNeedsQuote = regexp.MustCompile(`[^a-z0-9_]|^[0-9]`)
var pgKeywords = regexp.MustCompile(`(?i)^(USER|SELECT|INSERT|UPDATE|DELETE|FROM|WHERE|JOIN|LEFT|RIGHT|INNER|GROUP|ORDER|HAVING|AND|OR|NOT|CREATE|DROP|ALTER|TABLE|INDEX|ON|INTO|VALUES|SET|AS|DISTINCT|TYPE|DEFAULT|LIMIT|OFFSET|START|END|BEGIN|COMMIT|ROLLBACK|PRIMARY|AUTHORIZATION|CASE|WHEN|THEN|ELSE|NULL|TRUE|FALSE|IS|IN|LIKE|WITH|UNION|ALL|ANY|SOME|EXISTS)$`)

type postgresDialect struct {
	style literalStyle
}

var _ Dialect = (*postgresDialect)(nil)
var _ DialectAlias = (*postgresDialect)(nil)

func (d *postgresDialect) Name() string       { return "postgres" }
func (d *postgresDialect) DriverName() string { return "postgres" }
func (d *postgresDialect) Aliases() []string  { return []string{"postgresql", "cockroach", "cockroachdb"} }

func (d *postgresDialect) DSN(u *url.URL) (string, error) {
	dsn := *u
	dsn.Scheme = "postgres"
	return dsn.String(), nil
}

func (d *postgresDialect) QuoteIdentifier(name string) string {
	if pgNeedsQuote.MatchString(name) || pgKeywords.MatchString(name) {
		return pq.QuoteIdentifier(name)
	}
	return name
}

func (d *postgresDialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (d *postgresDialect) ContainsInsensitive(expr string) string {
	return expr + " ILIKE ?"
}

func (d *postgresDialect) Limit(limit, offset int) string {
	if offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf("LIMIT %d", limit)
}

func (d *postgresDialect) QuoteValue(val any) string {
	return d.style.quote(val)
}

func init() {
	RegisterDialect("postgres", &postgresDialect{style: literalStyle{
		quoteString: pq.QuoteLiteral,
		trueValue:   "TRUE",
		falseValue:  "FALSE",
		timeFormat:  "2006-01-02 15:04:05.999999Z07:00",
	}})
}
