// Package history keeps a searchable record of answered questions and the SQL
// produced for them.
package history

import (
	"context"
	"time"
)

// Entry is one finished generate-sql request.
type Entry struct {
	RequestID  string    `json:"request_id"`
	Query      string    `json:"query"`
	SQL        string    `json:"sql,omitempty"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	RowCount   int       `json:"row_count"`
	DurationMs int64     `json:"duration_ms"`
	Dialect    string    `json:"dialect,omitempty"`
	Model      string    `json:"model,omitempty"`
	Timestamp  time.Time `json:"@timestamp"`
}

// Recorder accepts entries without blocking the request that produced them.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
