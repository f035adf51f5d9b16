package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// Dialect adapts the database/sql warehouse to one engine.
type Dialect struct {
	Name string
	// Describe returns the table-description statement and its arguments.
	// The first two result columns must be the column name and type.
	Describe func(table string) (string, []any)
	// IsStatementError reports whether a driver error is a statement rejection.
	// Nil treats every non-transport error as one.
	IsStatementError func(err error) bool
}

// PoolConfig tunes the underlying database/sql pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func (p PoolConfig) apply(db *sql.DB) {
	if p.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.MaxIdleConns)
	}
	if p.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(p.ConnMaxIdleTime)
	}
	if p.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(p.ConnMaxLifetime)
	}
}

// SQLWarehouse implements Warehouse over any database/sql driver.
type SQLWarehouse struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLWarehouse wraps an open pool.
func NewSQLWarehouse(db *sql.DB, dialect Dialect) *SQLWarehouse {
	return &SQLWarehouse{db: db, dialect: dialect}
}

func (w *SQLWarehouse) Dialect() string { return w.dialect.Name }

func (w *SQLWarehouse) Close() error { return w.db.Close() }

func (w *SQLWarehouse) Ping(ctx context.Context) error {
	return w.withConn(ctx, func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}

// withConn acquires a dedicated connection for fn and always releases it.
func (w *SQLWarehouse) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := w.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open %s connection: %w", w.dialect.Name, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("dialect", w.dialect.Name).Msg("close warehouse connection")
		}
	}()
	return fn(conn)
}

// DescribeTable lists the table's columns in declaration order.
func (w *SQLWarehouse) DescribeTable(ctx context.Context, table string) ([]Column, error) {
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}
	stmt, args := w.dialect.Describe(table)

	var cols []Column
	err := w.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("describe query: %w", err)
		}
		defer func() { _ = rows.Close() }()

		names, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("describe columns: %w", err)
		}
		if len(names) < 2 {
			return fmt.Errorf("describe returned %d columns, need name and type", len(names))
		}
		for rows.Next() {
			values, err := scanRow(rows, len(names))
			if err != nil {
				return err
			}
			cols = append(cols, Column{Name: asString(values[0]), Type: asString(values[1])})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return cols, nil
}

// Query executes statement and fetches every row.
func (w *SQLWarehouse) Query(ctx context.Context, statement string) (*Result, error) {
	start := time.Now()
	res := &Result{Rows: make([][]any, 0)}

	err := w.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, statement)
		if err != nil {
			return w.classify(ctx, fmt.Errorf("execute query: %w", err))
		}
		defer func() { _ = rows.Close() }()

		res.Columns, err = rows.Columns()
		if err != nil {
			return fmt.Errorf("query columns: %w", err)
		}
		for rows.Next() {
			values, err := scanRow(rows, len(res.Columns))
			if err != nil {
				return err
			}
			res.Rows = append(res.Rows, normalizeValues(values))
		}
		if err := rows.Err(); err != nil {
			return w.classify(ctx, fmt.Errorf("iterate rows: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("dialect", w.dialect.Name).
		Int("rows", len(res.Rows)).
		Dur("duration", time.Since(start)).
		Msg("warehouse query")
	return res, nil
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	targets := make([]any, n)
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return values, nil
}

// classify wraps statement rejections in QueryError and leaves transport errors alone.
func (w *SQLWarehouse) classify(ctx context.Context, err error) error {
	if isTransportError(ctx, err) {
		return err
	}
	if w.dialect.IsStatementError != nil && !w.dialect.IsStatementError(err) {
		return err
	}
	return &QueryError{SQLState: sqlState(err), Err: err}
}

func isTransportError(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sqlState extracts a SQLSTATE code from drivers that expose one.
func sqlState(err error) string {
	var s interface{ SQLState() string }
	if errors.As(err, &s) {
		return s.SQLState()
	}
	return ""
}
