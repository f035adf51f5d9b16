package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Duration accepts "90s"-style strings or plain seconds in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := parseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %s", b)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	TokenHeader     string   `json:"token_header"`
	APIAccessTokens []string `json:"api_access_tokens"`

	// Admission
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
	RequestTimeout     Duration `json:"request_timeout"`

	// Completion service
	LLMProvider      string   `json:"llm_provider"` // openai | anthropic
	OpenAIAPIKey     string   `json:"openai_api_key"`
	OpenAIBaseURL    string   `json:"openai_base_url"`
	OpenAIModel      string   `json:"openai_model"`
	AnthropicAPIKey  string   `json:"anthropic_api_key"`
	AnthropicBaseURL string   `json:"anthropic_base_url"` // override for custom proxy
	AnthropicModel   string   `json:"anthropic_model"`
	LLMMaxTokens     int      `json:"llm_max_tokens"`
	LLMTimeout       Duration `json:"llm_timeout"`

	// Warehouse
	WarehouseDriver string   `json:"warehouse_driver"` // snowflake | postgres | duckdb | bigquery
	InvoiceTable    string   `json:"invoice_table"`
	SchemaCacheTTL  Duration `json:"schema_cache_ttl"`
	QueryTimeout    Duration `json:"query_timeout"`
	DBMaxOpenConns  int      `json:"db_max_open_conns"`
	DBMaxIdleConns  int      `json:"db_max_idle_conns"`

	SnowflakeAccount   string `json:"snowflake_account"`
	SnowflakeUser      string `json:"snowflake_user"`
	SnowflakePassword  string `json:"snowflake_password"`
	SnowflakeWarehouse string `json:"snowflake_warehouse"`
	SnowflakeDatabase  string `json:"snowflake_database"`
	SnowflakeSchema    string `json:"snowflake_schema"`
	SnowflakeRole      string `json:"snowflake_role"`

	PostgresDSN string `json:"postgres_dsn"`
	DuckDBPath  string `json:"duckdb_path"`

	GCPProjectID                 string `json:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryDataset              string `json:"bigquery_dataset"`
	BigQueryLocation             string `json:"bigquery_location"`

	// Shared schema cache
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	RedisKey      string `json:"redis_key"`

	// Query history
	ElasticsearchURLs        []string `json:"elasticsearch_urls"`
	ElasticsearchUser        string   `json:"elasticsearch_user"`
	ElasticsearchPassword    string   `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool     `json:"elasticsearch_verify_certs"`
	HistoryIndex             string   `json:"history_index"`

	// Security
	EnableAuditLogging bool `json:"enable_audit_logging"`
	EnableSQLGuard     bool `json:"enable_sql_guard"`
	EnablePromptGuard  bool `json:"enable_prompt_guard"`

	// Tracing
	OTelEnabled     bool    `json:"otel_enabled"`
	OTelEndpoint    string  `json:"otel_endpoint"`
	OTelInsecure    bool    `json:"otel_insecure"`
	OTelHeaders     string  `json:"otel_headers"`
	OTelSampleRatio float64 `json:"otel_sample_ratio"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              DefaultCORSOrigins,
		TokenHeader:              DefaultTokenHeader,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		RequestTimeout:           Duration(DefaultRequestTimeout),
		LLMProvider:              DefaultLLMProvider,
		OpenAIBaseURL:            DefaultOpenAIBaseURL,
		OpenAIModel:              DefaultOpenAIModel,
		AnthropicModel:           DefaultAnthropicModel,
		LLMMaxTokens:             DefaultLLMMaxTokens,
		LLMTimeout:               Duration(DefaultLLMTimeout),
		WarehouseDriver:          DefaultWarehouseDriver,
		InvoiceTable:             DefaultInvoiceTable,
		SchemaCacheTTL:           Duration(DefaultSchemaCacheTTL),
		QueryTimeout:             Duration(DefaultQueryTimeout),
		DBMaxOpenConns:           DefaultDBMaxOpenConns,
		DBMaxIdleConns:           DefaultDBMaxIdleConns,
		DuckDBPath:               DefaultDuckDBPath,
		BigQueryLocation:         DefaultBigQueryLocation,
		RedisKey:                 DefaultRedisKey,
		ElasticsearchVerifyCerts: true,
		HistoryIndex:             DefaultHistoryIndex,
		EnableAuditLogging:       true,
		EnableSQLGuard:           true,
		EnablePromptGuard:        true,
		OTelSampleRatio:          DefaultOTelSampleRatio,
	}

	// Load from JSON config file if specified
	if path := getEnv("ARQUERY_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Environment overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if len(c.APIAccessTokens) == 0 {
		errs = append(errs, errors.New("API_ACCESS_TOKEN is required"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	if c.RequestTimeout.D() <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.SchemaCacheTTL.D() <= 0 {
		errs = append(errs, errors.New("SCHEMA_CACHE_TTL must be positive"))
	}
	if c.InvoiceTable == "" {
		errs = append(errs, errors.New("INVOICE_TABLE is required"))
	}
	if c.LLMMaxTokens <= 0 {
		errs = append(errs, errors.New("LLM_MAX_TOKENS must be positive"))
	}

	errs = append(errs, c.validateLLM()...)
	errs = append(errs, c.ValidateWarehouse()...)

	return errors.Join(errs...)
}

func (c *Config) validateLLM() []error {
	if !supportedProviders[c.LLMProvider] {
		return []error{fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)}
	}
	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return []error{errors.New("OPENAI_API_KEY is required for the openai provider")}
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return []error{errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")}
		}
	}
	return nil
}

// ValidateWarehouse checks only the settings the selected driver needs. The
// CLI schema command uses it on its own since it never calls the LLM.
func (c *Config) ValidateWarehouse() []error {
	if !supportedDrivers[c.WarehouseDriver] {
		return []error{fmt.Errorf("unsupported WAREHOUSE_DRIVER %q", c.WarehouseDriver)}
	}
	var errs []error
	require := func(v, name string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required for the %s driver", name, c.WarehouseDriver))
		}
	}
	switch c.WarehouseDriver {
	case "snowflake":
		require(c.SnowflakeAccount, "SNOWFLAKE_ACCOUNT")
		require(c.SnowflakeUser, "SNOWFLAKE_USER")
		require(c.SnowflakePassword, "SNOWFLAKE_PASSWORD")
		require(c.SnowflakeWarehouse, "SNOWFLAKE_WAREHOUSE")
		require(c.SnowflakeDatabase, "SNOWFLAKE_DATABASE")
		require(c.SnowflakeSchema, "SNOWFLAKE_SCHEMA")
	case "postgres":
		require(c.PostgresDSN, "POSTGRES_DSN")
	case "duckdb":
		require(c.DuckDBPath, "DUCKDB_PATH")
	case "bigquery":
		require(c.GCPProjectID, "GCP_PROJECT_ID")
		require(c.BigQueryDataset, "BIGQUERY_DATASET")
	}
	return errs
}

// IsDevelopment reports whether human-readable logs are wanted.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error
	setString := func(dst *string, key string) {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := getEnv(key, ""); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(dst *bool, key string) {
		if v := getEnv(key, ""); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(dst *Duration, key string) {
		if v := getEnv(key, ""); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = Duration(d)
		}
	}
	setList := func(dst *[]string, key string) {
		if v := getEnv(key, ""); v != "" {
			*dst = splitList(v)
		}
	}

	setString(&cfg.Host, "ARQUERY_HOST")
	setInt(&cfg.Port, "ARQUERY_PORT")
	setString(&cfg.Environment, "ENVIRONMENT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setList(&cfg.CORSOrigins, "CORS_ORIGINS")
	setString(&cfg.TokenHeader, "TOKEN_HEADER")
	setList(&cfg.APIAccessTokens, "API_ACCESS_TOKEN")
	setInt(&cfg.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
	setDuration(&cfg.RequestTimeout, "REQUEST_TIMEOUT")

	setString(&cfg.LLMProvider, "LLM_PROVIDER")
	setString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.OpenAIModel, "OPENAI_MODEL")
	setString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.AnthropicBaseURL, "ANTHROPIC_BASE_URL")
	setString(&cfg.AnthropicModel, "ANTHROPIC_MODEL")
	setInt(&cfg.LLMMaxTokens, "LLM_MAX_TOKENS")
	setDuration(&cfg.LLMTimeout, "LLM_TIMEOUT")

	setString(&cfg.WarehouseDriver, "WAREHOUSE_DRIVER")
	setString(&cfg.InvoiceTable, "INVOICE_TABLE")
	setDuration(&cfg.SchemaCacheTTL, "SCHEMA_CACHE_TTL")
	setDuration(&cfg.QueryTimeout, "QUERY_TIMEOUT")
	setInt(&cfg.DBMaxOpenConns, "DB_MAX_OPEN_CONNS")
	setInt(&cfg.DBMaxIdleConns, "DB_MAX_IDLE_CONNS")
	setString(&cfg.SnowflakeAccount, "SNOWFLAKE_ACCOUNT")
	setString(&cfg.SnowflakeUser, "SNOWFLAKE_USER")
	setString(&cfg.SnowflakePassword, "SNOWFLAKE_PASSWORD")
	setString(&cfg.SnowflakeWarehouse, "SNOWFLAKE_WAREHOUSE")
	setString(&cfg.SnowflakeDatabase, "SNOWFLAKE_DATABASE")
	setString(&cfg.SnowflakeSchema, "SNOWFLAKE_SCHEMA")
	setString(&cfg.SnowflakeRole, "SNOWFLAKE_ROLE")
	setString(&cfg.PostgresDSN, "POSTGRES_DSN")
	setString(&cfg.DuckDBPath, "DUCKDB_PATH")
	setString(&cfg.GCPProjectID, "GCP_PROJECT_ID")
	setString(&cfg.GoogleApplicationCredentials, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.BigQueryDataset, "BIGQUERY_DATASET")
	setString(&cfg.BigQueryLocation, "BIGQUERY_LOCATION")

	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.RedisDB, "REDIS_DB")
	setString(&cfg.RedisKey, "REDIS_SCHEMA_KEY")

	setList(&cfg.ElasticsearchURLs, "ELASTICSEARCH_URL")
	setString(&cfg.ElasticsearchUser, "ELASTICSEARCH_USER")
	setString(&cfg.ElasticsearchPassword, "ELASTICSEARCH_PASSWORD")
	setBool(&cfg.ElasticsearchVerifyCerts, "ELASTICSEARCH_VERIFY_CERTS")
	setString(&cfg.HistoryIndex, "HISTORY_INDEX")

	setBool(&cfg.EnableAuditLogging, "ENABLE_AUDIT_LOGGING")
	setBool(&cfg.EnableSQLGuard, "ENABLE_SQL_GUARD")
	setBool(&cfg.EnablePromptGuard, "ENABLE_PROMPT_GUARD")

	setBool(&cfg.OTelEnabled, "OTEL_ENABLED")
	setString(&cfg.OTelEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTelInsecure, "OTEL_EXPORTER_OTLP_INSECURE")
	setString(&cfg.OTelHeaders, "OTEL_EXPORTER_OTLP_HEADERS")
	if v := getEnv("OTEL_SAMPLER_RATIO", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("OTEL_SAMPLER_RATIO: %w", err))
		} else {
			cfg.OTelSampleRatio = f
		}
	}

	return errors.Join(errs...)
}

// parseDuration accepts Go duration strings or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
