package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arquery/arquery/internal/cache"
	"github.com/arquery/arquery/internal/config"
	"github.com/arquery/arquery/internal/handler"
	"github.com/arquery/arquery/internal/history"
	"github.com/arquery/arquery/internal/llm"
	"github.com/arquery/arquery/internal/middleware"
	"github.com/arquery/arquery/internal/pipeline"
	"github.com/arquery/arquery/internal/security"
	"github.com/arquery/arquery/internal/warehouse"
	"github.com/rs/zerolog/log"
)

// Deps is everything the router needs. Shared and HistoryPinger are nil when
// Redis or Elasticsearch are not configured.
type Deps struct {
	Pipeline      handler.Runner
	Warehouse     warehouse.Warehouse
	Cache         *pipeline.SchemaCache
	Shared        handler.Invalidator
	HistoryPinger handler.Pinger
	Audit         *security.AuditLogger
	RateLimiter   *middleware.RateLimiter

	closers []func(context.Context) error
}

// Close releases clients in reverse order of creation.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Build connects to the warehouse and optional tiers and assembles the pipeline.
// Redis and Elasticsearch failures are logged and the service runs without them.
func Build(ctx context.Context, cfg *config.Config) (*Deps, error) {
	d := &Deps{
		Audit:       security.NewAuditLogger(cfg.EnableAuditLogging),
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute),
	}

	wh, err := NewWarehouse(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d.Warehouse = wh
	d.closers = append(d.closers, func(context.Context) error { return wh.Close() })

	gen, err := NewGenerator(cfg)
	if err != nil {
		_ = d.Close(ctx)
		return nil, err
	}

	var source pipeline.SchemaSource = pipeline.WarehouseSchemaSource{Warehouse: wh, Table: cfg.InvoiceTable}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable - schema cache is per process")
		} else {
			shared := cache.NewRedisSchemaSource(rdb, source, cfg.RedisKey, cfg.SchemaCacheTTL.D())
			source = shared
			d.Shared = shared
			d.closers = append(d.closers, func(context.Context) error { return rdb.Close() })
		}
	}
	d.Cache = pipeline.NewSchemaCache(source, cfg.SchemaCacheTTL.D())

	var rec history.Recorder
	if len(cfg.ElasticsearchURLs) > 0 {
		es, err := history.NewElasticsearchRecorder(history.ElasticsearchConfig{
			Addresses:   cfg.ElasticsearchURLs,
			Username:    cfg.ElasticsearchUser,
			Password:    cfg.ElasticsearchPassword,
			Index:       cfg.HistoryIndex,
			VerifyCerts: cfg.ElasticsearchVerifyCerts,
			MaxRetries:  3,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Elasticsearch unavailable - query history disabled")
		} else {
			rec = es
			d.HistoryPinger = es
			d.closers = append(d.closers, es.Close)
		}
	}

	cfgP := pipeline.Config{
		Cache:     d.Cache,
		Prompts:   pipeline.NewPromptBuilder(pipeline.DefaultPolicy(wh.Dialect())),
		Generator: gen,
		Warehouse: wh,
		Audit:     d.Audit,
		History:   rec,
	}
	if cfg.EnablePromptGuard {
		cfgP.PromptGuard = security.NewPromptValidator()
	}
	if cfg.EnableSQLGuard {
		cfgP.SQLGuard = security.NewSQLValidator()
	}
	d.Pipeline = pipeline.New(cfgP)

	log.Info().
		Str("warehouse", wh.Dialect()).
		Str("table", cfg.InvoiceTable).
		Str("llm_provider", gen.Provider()).
		Str("llm_model", gen.Model()).
		Bool("shared_schema_cache", d.Shared != nil).
		Bool("history", d.HistoryPinger != nil).
		Bool("sql_guard", cfg.EnableSQLGuard).
		Bool("prompt_guard", cfg.EnablePromptGuard).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Msg("service configuration")

	return d, nil
}

// NewWarehouse opens the backend selected by WAREHOUSE_DRIVER.
func NewWarehouse(ctx context.Context, cfg *config.Config) (warehouse.Warehouse, error) {
	pool := warehouse.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	switch cfg.WarehouseDriver {
	case "snowflake":
		return warehouse.NewSnowflake(warehouse.SnowflakeConfig{
			Account:   cfg.SnowflakeAccount,
			User:      cfg.SnowflakeUser,
			Password:  cfg.SnowflakePassword,
			Warehouse: cfg.SnowflakeWarehouse,
			Database:  cfg.SnowflakeDatabase,
			Schema:    cfg.SnowflakeSchema,
			Role:      cfg.SnowflakeRole,
			Pool:      pool,
		})
	case "postgres":
		return warehouse.NewPostgres(cfg.PostgresDSN, pool)
	case "duckdb":
		return warehouse.NewDuckDB(cfg.DuckDBPath)
	case "bigquery":
		return warehouse.NewBigQuery(ctx, warehouse.BigQueryConfig{
			ProjectID:       cfg.GCPProjectID,
			CredentialsFile: cfg.GoogleApplicationCredentials,
			Dataset:         cfg.BigQueryDataset,
			Location:        cfg.BigQueryLocation,
			QueryTimeout:    cfg.QueryTimeout.D(),
		})
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.WarehouseDriver)
	}
}

// NewGenerator builds the completion client selected by LLM_PROVIDER.
func NewGenerator(cfg *config.Config) (llm.Generator, error) {
	sampling := llm.DefaultSampling()
	sampling.MaxTokens = cfg.LLMMaxTokens
	switch cfg.LLMProvider {
	case "openai":
		return llm.NewOpenAIGenerator(llm.OpenAIConfig{
			BaseURL:  cfg.OpenAIBaseURL,
			APIKey:   cfg.OpenAIAPIKey,
			Model:    cfg.OpenAIModel,
			Timeout:  cfg.LLMTimeout.D(),
			Sampling: sampling,
		})
	case "anthropic":
		return llm.NewAnthropicGenerator(llm.AnthropicConfig{
			APIKey:   cfg.AnthropicAPIKey,
			BaseURL:  cfg.AnthropicBaseURL,
			Model:    cfg.AnthropicModel,
			Sampling: sampling,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}
