package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/arquery/arquery/internal/observability"
	"github.com/arquery/arquery/internal/warehouse"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultSchemaTTL is how long a fetched table description stays fresh.
const DefaultSchemaTTL = 7200 * time.Second

// SchemaSource produces the textual table description on a cache miss.
type SchemaSource interface {
	FetchSchema(ctx context.Context) (string, error)
}

// AgedSchemaSource is a SchemaSource that can report when its description was
// first fetched from the warehouse. The cache measures freshness from that
// instant, so a shared tier never extends the TTL.
type AgedSchemaSource interface {
	SchemaSource
	FetchSchemaAt(ctx context.Context) (string, time.Time, error)
}

type schemaEntry struct {
	description string
	fetchedAt   time.Time
}

// SchemaCache holds the last fetched table description. Readers always see a
// complete {description, fetchedAt} pair; concurrent refreshes share one fetch.
type SchemaCache struct {
	source SchemaSource
	ttl    time.Duration
	now    func() time.Time

	entry atomic.Pointer[schemaEntry]
	sf    singleflight.Group
}

// NewSchemaCache creates an empty cache. A non-positive ttl falls back to DefaultSchemaTTL.
func NewSchemaCache(source SchemaSource, ttl time.Duration) *SchemaCache {
	if ttl <= 0 {
		ttl = DefaultSchemaTTL
	}
	return &SchemaCache{source: source, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (c *SchemaCache) WithClock(now func() time.Time) *SchemaCache {
	c.now = now
	return c
}

func (c *SchemaCache) fresh(e *schemaEntry) bool {
	return e != nil && c.now().Sub(e.fetchedAt) < c.ttl
}

// Get returns the cached description, refreshing it first when it was never
// fetched or is older than the TTL. A failed refresh leaves the cache untouched
// and is never answered with a stale value.
func (c *SchemaCache) Get(ctx context.Context) (string, error) {
	if e := c.entry.Load(); c.fresh(e) {
		log.Debug().Msg("schema cache hit")
		return e.description, nil
	}

	v, err, _ := c.sf.Do("schema", func() (interface{}, error) {
		// another caller may have refreshed while we waited to enter
		if e := c.entry.Load(); c.fresh(e) {
			return e.description, nil
		}

		start := time.Now()
		desc, fetchedAt, err := c.fetch(ctx)
		if err != nil {
			observability.ObserveSchemaRefresh(false)
			return nil, err
		}
		c.entry.Store(&schemaEntry{description: desc, fetchedAt: fetchedAt})
		observability.ObserveSchemaRefresh(true)

		log.Info().
			Dur("fetch_ms", time.Since(start)).
			Dur("ttl", c.ttl).
			Msg("schema cached")
		return desc, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// fetch asks the source for a description and the time it was fetched. A
// missing or future timestamp counts as now.
func (c *SchemaCache) fetch(ctx context.Context) (string, time.Time, error) {
	now := c.now()
	aged, ok := c.source.(AgedSchemaSource)
	if !ok {
		desc, err := c.source.FetchSchema(ctx)
		return desc, now, err
	}
	desc, fetchedAt, err := aged.FetchSchemaAt(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	if fetchedAt.IsZero() || fetchedAt.After(now) {
		fetchedAt = now
	}
	return desc, fetchedAt, nil
}

// Snapshot reports the cached description without triggering a refresh.
func (c *SchemaCache) Snapshot() (description string, fetchedAt time.Time, ok bool) {
	e := c.entry.Load()
	if e == nil {
		return "", time.Time{}, false
	}
	return e.description, e.fetchedAt, true
}

// Invalidate drops the cached entry so the next Get refetches.
func (c *SchemaCache) Invalidate() {
	c.entry.Store(nil)
}

// TTL returns the configured freshness window.
func (c *SchemaCache) TTL() time.Duration { return c.ttl }

// WarehouseSchemaSource describes one table through a warehouse connection.
type WarehouseSchemaSource struct {
	Warehouse warehouse.Warehouse
	Table     string
}

func (s WarehouseSchemaSource) FetchSchema(ctx context.Context) (string, error) {
	cols, err := s.Warehouse.DescribeTable(ctx, s.Table)
	if err != nil {
		return "", fmt.Errorf("describe table %s: %w", s.Table, err)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("describe table %s: no columns returned", s.Table)
	}
	return FormatSchema(s.Table, cols), nil
}

// FormatSchema renders the header sentence followed by one "- NAME (TYPE)" line per column.
func FormatSchema(table string, cols []warehouse.Column) string {
	var sb strings.Builder
	sb.WriteString("Table " + strings.ToLower(table) + " has the following columns:\n")
	for _, c := range cols {
		fmt.Fprintf(&sb, "- %s (%s)\n", c.Name, c.Type)
	}
	return sb.String()
}
