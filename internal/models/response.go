package models

import "time"

// GenerateSQLResponse is returned by POST /v1/generate_sql. Rows keep the
// warehouse's column order and value types.
type GenerateSQLResponse struct {
	Results [][]any `json:"results"`
	Status  int     `json:"status"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// SchemaResponse is returned by GET /v1/schema and POST /v1/schema/refresh
type SchemaResponse struct {
	Table       string     `json:"table"`
	Dialect     string     `json:"dialect"`
	Cached      bool       `json:"cached"`
	Description string     `json:"description,omitempty"`
	FetchedAt   *time.Time `json:"fetched_at,omitempty"`
	AgeSeconds  int64      `json:"age_seconds"`
	TTLSeconds  int64      `json:"ttl_seconds"`
}
