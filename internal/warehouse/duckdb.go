package warehouse

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// DuckDBDialect is used for local development against a DuckDB file.
// DuckDB runs in-process, so every query error is a statement rejection.
var DuckDBDialect = Dialect{
	Name: "DuckDB",
	Describe: func(table string) (string, []any) {
		return "DESCRIBE " + table, nil
	},
}

// NewDuckDB opens path; an empty path is an in-memory database.
func NewDuckDB(path string) (*SQLWarehouse, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return NewSQLWarehouse(db, DuckDBDialect), nil
}
