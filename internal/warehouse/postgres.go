package warehouse

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDialect reads column metadata from information_schema.
var PostgresDialect = Dialect{
	Name: "PostgreSQL",
	Describe: func(table string) (string, []any) {
		schema, name := "", table
		if i := strings.LastIndex(table, "."); i >= 0 {
			schema, name = table[:i], table[i+1:]
		}
		if schema == "" {
			return `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, []any{strings.ToLower(name)}
		}
		return `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`, []any{strings.ToLower(schema), strings.ToLower(name)}
	},
	IsStatementError: func(err error) bool {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return false
		}
		return !strings.HasPrefix(pgErr.Code, "08")
	},
}

// NewPostgres opens a pgx-backed pool for dsn.
func NewPostgres(dsn string, pool PoolConfig) (*SQLWarehouse, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pool.apply(db)
	return NewSQLWarehouse(db, PostgresDialect), nil
}
