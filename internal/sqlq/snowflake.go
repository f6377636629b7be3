package sqlq

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/snowflakedb/gosnowflake"
)

type snowflakeDialect struct {
	style literalStyle
}

var _ Dialect = (*snowflakeDialect)(nil)

func (d *snowflakeDialect) Name() string       { return "snowflake" }
func (d *snowflakeDialect) DriverName() string { return "snowflake" }

// DSN drops the scheme and round-trips the rest through the driver's parser so that bad urls fail early.
func (d *snowflakeDialect) DSN(u *url.URL) (string, error) {
	cfg, err := gosnowflake.ParseDSN(strings.TrimPrefix(u.String(), "snowflake://"))
	if err != nil {
		return "", fmt.Errorf("error parsing snowflake url: %w", err)
	}
	return gosnowflake.DSN(cfg)
}

func (d *snowflakeDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *snowflakeDialect) Placeholder(n int) string {
	return "?"
}

func (d *snowflakeDialect) ContainsInsensitive(expr string) string {
	return expr + ` ILIKE ? ESCAPE '\\'`
}

func (d *snowflakeDialect) Limit(limit, offset int) string {
	if offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf("LIMIT %d", limit)
}

func (d *snowflakeDialect) QuoteValue(val any) string {
	return d.style.quote(val)
}

func init() {
	RegisterDialect("snowflake", &snowflakeDialect{style: literalStyle{
		quoteString: backslashQuoteString,
		trueValue:   "TRUE",
		falseValue:  "FALSE",
		timeFormat:  "2006-01-02 15:04:05.999999",
	}})
}
