package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/snowflakedb/gosnowflake"
)

func TestDescribeTableSnowflake(t *testing.T) {
	db, mock := newSQLMock(t)
	w := NewSQLWarehouse(db, SnowflakeDialect)

	mock.ExpectQuery(regexp.QuoteMeta(`DESCRIBE TABLE AR_INVOICE_DETAILS`)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "kind", "null?"}).
			AddRow("INVOICE_ID", "VARCHAR(16777216)", "COLUMN", "Y").
			AddRow("INVOICE_DUE_DATE", "DATE", "COLUMN", "Y"))

	cols, err := w.DescribeTable(context.Background(), "ar_invoice_details")
	if err != nil {
		t.Fatalf("DescribeTable() error = %v", err)
	}
	want := []Column{
		{Name: "INVOICE_ID", Type: "VARCHAR(16777216)"},
		{Name: "INVOICE_DUE_DATE", Type: "DATE"},
	}
	if len(cols) != len(want) {
		t.Fatalf("got %d columns, want %d", len(cols), len(want))
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("column %d = %+v, want %+v", i, cols[i], want[i])
		}
	}
	assertSQLMock(t, mock)
}

func TestDescribeTablePostgresArgs(t *testing.T) {
	db, mock := newSQLMock(t)
	w := NewSQLWarehouse(db, PostgresDialect)

	mock.ExpectQuery(`information_schema\.columns`).
		WithArgs("finance", "ar_invoice_details").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("invoice_id", "text"))

	cols, err := w.DescribeTable(context.Background(), "finance.AR_INVOICE_DETAILS")
	if err != nil {
		t.Fatalf("DescribeTable() error = %v", err)
	}
	if len(cols) != 1 || cols[0].Name != "invoice_id" || cols[0].Type != "text" {
		t.Fatalf("cols = %+v", cols)
	}
	assertSQLMock(t, mock)
}

func TestDescribeTableRejectsBadIdentifier(t *testing.T) {
	db, _ := newSQLMock(t)
	w := NewSQLWarehouse(db, SnowflakeDialect)

	if _, err := w.DescribeTable(context.Background(), "ar_invoice_details; DROP TABLE x"); err == nil {
		t.Fatal("expected identifier error")
	}
}

func TestQueryReturnsRowsInOrder(t *testing.T) {
	db, mock := newSQLMock(t)
	w := NewSQLWarehouse(db, SnowflakeDialect)

	stmt := "SELECT INVOICE_ID, AMOUNT FROM ar_invoice_details LIMIT 100;"
	mock.ExpectQuery(regexp.QuoteMeta(stmt)).
		WillReturnRows(sqlmock.NewRows([]string{"INVOICE_ID", "AMOUNT"}).
			AddRow([]byte("INV-1"), 120.5).
			AddRow("INV-2", nil))

	res, err := w.Query(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "INVOICE_ID" {
		t.Fatalf("columns = %v", res.Columns)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	if got, ok := res.Rows[0][0].(string); !ok || got != "INV-1" {
		t.Errorf("row 0 col 0 = %#v, want string INV-1", res.Rows[0][0])
	}
	if res.Rows[1][1] != nil {
		t.Errorf("row 1 col 1 = %#v, want nil", res.Rows[1][1])
	}
	assertSQLMock(t, mock)
}

func TestQueryEmptyResultIsNotNil(t *testing.T) {
	db, mock := newSQLMock(t)
	w := NewSQLWarehouse(db, DuckDBDialect)

	mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows([]string{"a"}))

	res, err := w.Query(context.Background(), "SELECT a FROM t;")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.Rows == nil || len(res.Rows) != 0 {
		t.Fatalf("rows = %#v, want empty non-nil slice", res.Rows)
	}
	assertSQLMock(t, mock)
}

func TestQueryStatementErrorIsQueryError(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{"snowflake compilation", SnowflakeDialect, &gosnowflake.SnowflakeError{Number: 1003, SQLState: "42000", Message: "SQL compilation error"}, true},
		{"snowflake connection", SnowflakeDialect, &gosnowflake.SnowflakeError{Number: 390100, SQLState: "08001", Message: "login failed"}, false},
		{"snowflake plain error", SnowflakeDialect, errors.New("boom"), false},
		{"duckdb any error", DuckDBDialect, errors.New("Binder Error: column not found"), true},
		{"bad connection", DuckDBDialect, sql.ErrConnDone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMock(t)
			w := NewSQLWarehouse(db, tt.dialect)
			mock.ExpectQuery(`SELECT`).WillReturnError(tt.err)

			_, err := w.Query(context.Background(), "SELECT * FROM nowhere;")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsQueryError(err); got != tt.want {
				t.Errorf("IsQueryError(%v) = %v, want %v", err, got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error chain lost the driver error: %v", err)
			}
		})
	}
}

func TestQueryCanceledContextIsTransportError(t *testing.T) {
	db, _ := newSQLMock(t)
	w := NewSQLWarehouse(db, DuckDBDialect)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Query(ctx, "SELECT 1;")
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if IsQueryError(err) {
		t.Fatalf("canceled context must not be a statement error: %v", err)
	}
}

func TestValidateIdentifier(t *testing.T) {
	good := []string{"ar_invoice_details", "AR_INVOICE_DETAILS", "finance.ar_invoice_details", "db.finance.ar"}
	for _, name := range good {
		if err := ValidateIdentifier(name); err != nil {
			t.Errorf("ValidateIdentifier(%q) = %v", name, err)
		}
	}
	bad := []string{"", "1table", "ar invoice", "a;b", "a.b.c.d", `"quoted"`}
	for _, name := range bad {
		if err := ValidateIdentifier(name); err == nil {
			t.Errorf("ValidateIdentifier(%q) should fail", name)
		}
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
