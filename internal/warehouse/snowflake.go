package warehouse

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// SnowflakeConfig carries the account credentials for the Snowflake driver.
type SnowflakeConfig struct {
	Account      string
	User         string
	Password     string
	Warehouse    string
	Database     string
	Schema       string
	Role         string
	LoginTimeout time.Duration
	Pool         PoolConfig
}

// SnowflakeDialect describes tables with DESCRIBE TABLE and treats any
// SnowflakeError outside the connection-exception class as a statement rejection.
var SnowflakeDialect = Dialect{
	Name: "Snowflake",
	Describe: func(table string) (string, []any) {
		return "DESCRIBE TABLE " + strings.ToUpper(table), nil
	},
	IsStatementError: func(err error) bool {
		var sfErr *gosnowflake.SnowflakeError
		if !errors.As(err, &sfErr) {
			return false
		}
		return !strings.HasPrefix(sfErr.SQLState, "08")
	},
}

// NewSnowflake builds the pool lazily; no connection is made until first use.
func NewSnowflake(cfg SnowflakeConfig) (*SQLWarehouse, error) {
	if cfg.Account == "" || cfg.User == "" {
		return nil, fmt.Errorf("snowflake account and user are required")
	}
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:      cfg.Account,
		User:         cfg.User,
		Password:     cfg.Password,
		Warehouse:    cfg.Warehouse,
		Database:     cfg.Database,
		Schema:       cfg.Schema,
		Role:         cfg.Role,
		LoginTimeout: cfg.LoginTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build snowflake dsn: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake: %w", err)
	}
	cfg.Pool.apply(db)
	return NewSQLWarehouse(db, SnowflakeDialect), nil
}
