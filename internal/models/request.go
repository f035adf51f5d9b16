package models

// GenerateSQLRequest for POST /v1/generate_sql
type GenerateSQLRequest struct {
	Query string `json:"query"`
}
