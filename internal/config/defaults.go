package config

import "time"

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "production"
	DefaultLogLevel    = "info"

	DefaultTokenHeader        = "x-token"
	DefaultRateLimitPerMinute = 100
	DefaultRequestTimeout     = 60 * time.Second

	DefaultLLMProvider    = "openai"
	DefaultOpenAIBaseURL  = "https://api.openai.com"
	DefaultOpenAIModel    = "gpt-3.5-turbo"
	DefaultAnthropicModel = "claude-sonnet-4-6"
	DefaultLLMMaxTokens   = 150
	DefaultLLMTimeout     = 30 * time.Second

	DefaultWarehouseDriver  = "snowflake"
	DefaultInvoiceTable     = "AR_INVOICE_DETAILS"
	DefaultSchemaCacheTTL   = 7200 * time.Second
	DefaultQueryTimeout     = 60 * time.Second
	DefaultDBMaxOpenConns   = 10
	DefaultDBMaxIdleConns   = 5
	DefaultBigQueryLocation = "US"
	DefaultDuckDBPath       = "arquery.duckdb"

	DefaultRedisKey = "arquery:schema"

	DefaultHistoryIndex = "arquery-history"

	DefaultOTelSampleRatio = 0.1
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
}

var (
	supportedProviders = map[string]bool{"openai": true, "anthropic": true}
	supportedDrivers   = map[string]bool{"snowflake": true, "postgres": true, "duckdb": true, "bigquery": true}
)
