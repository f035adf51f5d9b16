package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arquery/arquery/internal/config"
)

func setSnowflakeEnv(t *testing.T) {
	t.Helper()
	t.Setenv("API_ACCESS_TOKEN", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SNOWFLAKE_ACCOUNT", "acme-xy12345")
	t.Setenv("SNOWFLAKE_USER", "svc_ar")
	t.Setenv("SNOWFLAKE_PASSWORD", "pw")
	t.Setenv("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH")
	t.Setenv("SNOWFLAKE_DATABASE", "FINANCE")
	t.Setenv("SNOWFLAKE_SCHEMA", "AR")
}

func TestLoadDefaults(t *testing.T) {
	setSnowflakeEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Port != 8000 || cfg.RateLimitPerMinute != 100 {
		t.Errorf("port = %d rate = %d", cfg.Port, cfg.RateLimitPerMinute)
	}
	if cfg.SchemaCacheTTL.D() != 7200*time.Second {
		t.Errorf("schema ttl = %v", cfg.SchemaCacheTTL.D())
	}
	if cfg.RequestTimeout.D() != 60*time.Second {
		t.Errorf("request timeout = %v", cfg.RequestTimeout.D())
	}
	if cfg.TokenHeader != "x-token" || cfg.WarehouseDriver != "snowflake" || cfg.LLMProvider != "openai" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.EnableSQLGuard || !cfg.EnablePromptGuard || !cfg.EnableAuditLogging {
		t.Error("guards should default on")
	}
	if cfg.LLMMaxTokens != 150 || cfg.OpenAIModel != "gpt-3.5-turbo" {
		t.Errorf("llm defaults = %d %s", cfg.LLMMaxTokens, cfg.OpenAIModel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setSnowflakeEnv(t)
	t.Setenv("API_ACCESS_TOKEN", "one, two")
	t.Setenv("SCHEMA_CACHE_TTL", "300")
	t.Setenv("REQUEST_TIMEOUT", "45s")
	t.Setenv("ENABLE_SQL_GUARD", "false")
	t.Setenv("CORS_ORIGINS", "https://ar.example.com,https://ops.example.com")
	t.Setenv("ELASTICSEARCH_URL", "http://es:9200")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.APIAccessTokens) != 2 || cfg.APIAccessTokens[1] != "two" {
		t.Errorf("tokens = %q", cfg.APIAccessTokens)
	}
	if cfg.SchemaCacheTTL.D() != 5*time.Minute {
		t.Errorf("ttl = %v", cfg.SchemaCacheTTL.D())
	}
	if cfg.RequestTimeout.D() != 45*time.Second {
		t.Errorf("timeout = %v", cfg.RequestTimeout.D())
	}
	if cfg.EnableSQLGuard {
		t.Error("ENABLE_SQL_GUARD=false ignored")
	}
	if len(cfg.CORSOrigins) != 2 || len(cfg.ElasticsearchURLs) != 1 {
		t.Errorf("lists = %q %q", cfg.CORSOrigins, cfg.ElasticsearchURLs)
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("ARQUERY_PORT", "eighty")
	t.Setenv("ENABLE_PROMPT_GUARD", "maybe")
	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"ARQUERY_PORT", "ENABLE_PROMPT_GUARD"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestLoadJSONFile(t *testing.T) {
	setSnowflakeEnv(t)
	path := filepath.Join(t.TempDir(), "arquery.json")
	body := `{"warehouse_driver":"duckdb","duckdb_path":"/tmp/ar.duckdb","schema_cache_ttl":"30m","query_timeout":15}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARQUERY_CONFIG", path)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WarehouseDriver != "duckdb" || cfg.DuckDBPath != "/tmp/ar.duckdb" {
		t.Errorf("driver = %s path = %s", cfg.WarehouseDriver, cfg.DuckDBPath)
	}
	if cfg.SchemaCacheTTL.D() != 30*time.Minute || cfg.QueryTimeout.D() != 15*time.Second {
		t.Errorf("durations = %v %v", cfg.SchemaCacheTTL.D(), cfg.QueryTimeout.D())
	}
}

func TestValidateReportsMissingSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want []string
	}{
		{
			name: "nothing set",
			env:  nil,
			want: []string{"API_ACCESS_TOKEN", "OPENAI_API_KEY", "SNOWFLAKE_ACCOUNT", "SNOWFLAKE_PASSWORD"},
		},
		{
			name: "anthropic without key",
			env:  map[string]string{"API_ACCESS_TOKEN": "t", "LLM_PROVIDER": "anthropic", "WAREHOUSE_DRIVER": "postgres", "POSTGRES_DSN": "postgres://x"},
			want: []string{"ANTHROPIC_API_KEY"},
		},
		{
			name: "unknown driver",
			env:  map[string]string{"API_ACCESS_TOKEN": "t", "OPENAI_API_KEY": "k", "WAREHOUSE_DRIVER": "oracle"},
			want: []string{"unsupported WAREHOUSE_DRIVER"},
		},
		{
			name: "bigquery without dataset",
			env:  map[string]string{"API_ACCESS_TOKEN": "t", "OPENAI_API_KEY": "k", "WAREHOUSE_DRIVER": "bigquery", "GCP_PROJECT_ID": "p"},
			want: []string{"BIGQUERY_DATASET"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := config.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not mention %s", err, w)
				}
			}
		})
	}
}
