// Package warehouse runs table descriptions and generated statements against the
// analytical database. Every call works on its own scoped connection.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Column is one row of a table description.
type Column struct {
	Name string
	Type string
}

// Result holds rows in driver order. Values are passed through untouched apart
// from []byte, which is rendered as a string.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Warehouse is the SQL-capable backend the pipeline talks to.
type Warehouse interface {
	DescribeTable(ctx context.Context, table string) ([]Column, error)
	Query(ctx context.Context, statement string) (*Result, error)
	Ping(ctx context.Context) error
	// Dialect is the human-readable SQL dialect name used in prompts.
	Dialect() string
	Close() error
}

// QueryError means the database compiled or ran the statement and rejected it.
// Connection and transport failures are never wrapped in a QueryError.
type QueryError struct {
	SQLState string
	Err      error
}

func (e *QueryError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("%v (sqlstate %s)", e.Err, e.SQLState)
	}
	return e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsQueryError reports whether err is a statement rejection.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)

// ValidateIdentifier rejects table names that cannot be interpolated safely into
// a describe statement.
func ValidateIdentifier(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid table identifier %q", name)
	}
	return nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
