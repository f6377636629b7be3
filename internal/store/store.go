package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
	"github.com/shopmonkeyus/tablekit/internal/util"
)

// Config is the configuration for an Executor.
type Config struct {
	DB      *sql.DB
	Dialect sqlq.Dialect
	Logger  logger.Logger
}

// Executor runs composed queries and mutations against a database.
type Executor struct {
	db      *sql.DB
	dialect sqlq.Dialect
	logger  logger.Logger
}

// New returns an executor for an open database.
func New(config Config) (*Executor, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("store requires a db")
	}
	if config.Dialect == nil {
		return nil, fmt.Errorf("store requires a dialect")
	}
	log := config.Logger
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	return &Executor{
		db:      config.DB,
		dialect: config.Dialect,
		logger:  log.WithPrefix("[store]"),
	}, nil
}

// Open connects to the database for the url. The url scheme selects the dialect and driver.
func Open(ctx context.Context, log logger.Logger, urlString string) (*Executor, error) {
	dialect, u, err := sqlq.DialectForURL(urlString)
	if err != nil {
		return nil, err
	}
	dsn, err := dialect.DSN(u)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to %s: %w", masked(urlString), err)
	}
	log.Debug("connected to %s", masked(urlString))
	return New(Config{DB: db, Dialect: dialect, Logger: log})
}

func masked(urlString string) string {
	if m, err := util.MaskURL(urlString); err == nil {
		return m
	}
	return urlString
}

// Dialect returns the dialect queries are rendered for.
func (e *Executor) Dialect() sqlq.Dialect {
	return e.dialect
}

// Close closes the database.
func (e *Executor) Close() error {
	return e.db.Close()
}

// queryer is implemented by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (e *Executor) observe(started time.Time) {
	internal.StoreQueryDuration.Observe(time.Since(started).Seconds())
}

func (e *Executor) rows(ctx context.Context, q queryer, frag sqlq.Fragment) ([]internal.Row, error) {
	query, args := sqlq.Bind(e.dialect, frag)
	e.logger.Trace("query: %s", sqlq.Interpolate(e.dialect, frag))
	defer e.observe(time.Now())
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "error running query: %s", query)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (e *Executor) exec(ctx context.Context, q queryer, frag sqlq.Fragment) (sql.Result, error) {
	query, args := sqlq.Bind(e.dialect, frag)
	e.logger.Trace("exec: %s", sqlq.Interpolate(e.dialect, frag))
	defer e.observe(time.Now())
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "error executing: %s", query)
	}
	return res, nil
}

// scanRows reads every row into a map keyed by column name. Byte slices become strings.
func scanRows(rows *sql.Rows) ([]internal.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var res []internal.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		row := make(internal.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// keyString makes store keys of any scanned type comparable.
func keyString(val any) string {
	return fmt.Sprint(val)
}
