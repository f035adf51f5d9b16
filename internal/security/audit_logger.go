package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// GenerationAudit describes one finished generate-sql request.
type GenerationAudit struct {
	RequestID       string
	Query           string
	Token           string
	SQL             string
	Outcome         string
	ExecutionTimeMs int64
	RowCount        int
}

// LogGeneration records a generate-sql event. Query text, SQL and the caller's
// token are only ever written as truncated SHA-256 hashes.
func (a *AuditLogger) LogGeneration(e GenerationAudit) {
	if a == nil || !a.enabled {
		return
	}
	sqlHash := ""
	if e.SQL != "" {
		sqlHash = HashString(e.SQL)[:16]
	}

	log.Info().
		Str("event", "generate_sql_audit").
		Str("request_id", e.RequestID).
		Str("query_hash", HashString(e.Query)[:16]).
		Str("token_hash", HashString(e.Token)[:16]).
		Str("sql_hash", sqlHash).
		Str("outcome", e.Outcome).
		Int64("execution_time_ms", e.ExecutionTimeMs).
		Int("row_count", e.RowCount).
		Msg("audit")
}

// LogAuthFailure records a rejected credential without storing it.
func (a *AuditLogger) LogAuthFailure(path, remoteAddr, token string) {
	if a == nil || !a.enabled {
		return
	}
	evt := log.Warn().
		Str("event", "auth_failure").
		Str("path", path).
		Str("remote_addr", remoteAddr)
	if token != "" {
		evt = evt.Str("token_hash", HashString(token)[:16])
	}
	evt.Msg("audit")
}

// HashString returns the hex SHA-256 of s.
func HashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
