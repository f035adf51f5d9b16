package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/arquery/arquery/internal/pipeline"
	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	data    map[string]string
	getErr  error
	setErr  error
	sets    int
	lastTTL time.Duration
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string]string{}} }

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.sets++
	f.lastTTL = ttl
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type countingSource struct {
	calls int
	desc  string
	err   error
}

func (c *countingSource) FetchSchema(context.Context) (string, error) {
	c.calls++
	return c.desc, c.err
}

func TestRedisSchemaSourceMissThenHit(t *testing.T) {
	st := newFakeStore()
	src := &countingSource{desc: "Table ar_invoice_details has the following columns:\n"}
	s := NewRedisSchemaSource(st, src, "", 2*time.Hour)

	for i := 0; i < 3; i++ {
		got, err := s.FetchSchema(context.Background())
		if err != nil {
			t.Fatalf("FetchSchema() error = %v", err)
		}
		if got != src.desc {
			t.Fatalf("FetchSchema() = %q", got)
		}
	}
	if src.calls != 1 {
		t.Errorf("inner source called %d times, want 1", src.calls)
	}
	if st.lastTTL != 2*time.Hour {
		t.Errorf("ttl = %v", st.lastTTL)
	}
	if _, ok := st.data["arquery:schema"]; !ok {
		t.Error("default key not populated")
	}
}

func TestRedisSchemaSourceDegradesOnRedisErrors(t *testing.T) {
	st := newFakeStore()
	st.getErr = errors.New("connection refused")
	st.setErr = errors.New("connection refused")
	src := &countingSource{desc: "schema"}
	s := NewRedisSchemaSource(st, src, "k", time.Minute)

	got, err := s.FetchSchema(context.Background())
	if err != nil || got != "schema" {
		t.Fatalf("FetchSchema() = %q, %v", got, err)
	}
}

func TestRedisSchemaSourcePropagatesSourceError(t *testing.T) {
	st := newFakeStore()
	src := &countingSource{err: errors.New("warehouse down")}
	s := NewRedisSchemaSource(st, src, "k", time.Minute)

	if _, err := s.FetchSchema(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if st.sets != 0 {
		t.Errorf("failed fetch must not be cached, sets = %d", st.sets)
	}
}

func TestRedisSchemaSourceInvalidate(t *testing.T) {
	st := newFakeStore()
	src := &countingSource{desc: "schema"}
	s := NewRedisSchemaSource(st, src, "k", time.Minute)

	_, _ = s.FetchSchema(context.Background())
	if err := s.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	_, _ = s.FetchSchema(context.Background())
	if src.calls != 2 {
		t.Errorf("inner source called %d times after invalidate, want 2", src.calls)
	}
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func seedShared(t *testing.T, st *fakeStore, key, desc string, fetchedAt time.Time) {
	t.Helper()
	body, err := json.Marshal(sharedSchema{Description: desc, FetchedAt: fetchedAt})
	if err != nil {
		t.Fatal(err)
	}
	st.data[key] = string(body)
}

func TestRedisSchemaSourceReturnsOriginalFetchTime(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := &stepClock{now: t0.Add(119 * time.Minute)}
	st := newFakeStore()
	seedShared(t, st, "k", "schema from replica A", t0)
	src := &countingSource{desc: "fresh schema"}
	s := NewRedisSchemaSource(st, src, "k", 2*time.Hour).WithClock(clock.Now)

	desc, fetchedAt, err := s.FetchSchemaAt(context.Background())
	if err != nil {
		t.Fatalf("FetchSchemaAt() error = %v", err)
	}
	if desc != "schema from replica A" || !fetchedAt.Equal(t0) {
		t.Errorf("FetchSchemaAt() = %q, %v; want replica A value fetched at %v", desc, fetchedAt, t0)
	}
	if src.calls != 0 {
		t.Errorf("inner source called %d times", src.calls)
	}
}

func TestRedisSchemaSourceExpiredOrLegacyValueIsMiss(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		seed func(st *fakeStore)
	}{
		{"older than ttl", func(st *fakeStore) {
			body, _ := json.Marshal(sharedSchema{Description: "old", FetchedAt: t0.Add(-2 * time.Hour)})
			st.data["k"] = string(body)
		}},
		{"plain text value", func(st *fakeStore) { st.data["k"] = "Table ar_invoice_details has the following columns:\n" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &stepClock{now: t0}
			st := newFakeStore()
			tt.seed(st)
			src := &countingSource{desc: "fresh schema"}
			s := NewRedisSchemaSource(st, src, "k", 2*time.Hour).WithClock(clock.Now)

			desc, fetchedAt, err := s.FetchSchemaAt(context.Background())
			if err != nil {
				t.Fatalf("FetchSchemaAt() error = %v", err)
			}
			if desc != "fresh schema" || !fetchedAt.Equal(t0) || src.calls != 1 {
				t.Errorf("got %q at %v after %d fetches", desc, fetchedAt, src.calls)
			}
			var stored sharedSchema
			if err := json.Unmarshal([]byte(st.data["k"]), &stored); err != nil || stored.Description != "fresh schema" {
				t.Errorf("stored = %q", st.data["k"])
			}
		})
	}
}

// A replica that first reads the shared value just before it expires must
// refetch once the original TTL has passed, not a full TTL after its read.
func TestSchemaCacheOverRedisHonoursOriginalTTL(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	ttl := 2 * time.Hour
	clock := &stepClock{now: t0.Add(119 * time.Minute)}
	st := newFakeStore()
	seedShared(t, st, "k", "schema from replica A", t0)
	warehouse := &countingSource{desc: "schema from warehouse"}

	shared := NewRedisSchemaSource(st, warehouse, "k", ttl).WithClock(clock.Now)
	c := pipeline.NewSchemaCache(shared, ttl).WithClock(clock.Now)

	got, err := c.Get(context.Background())
	if err != nil || got != "schema from replica A" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if _, fetchedAt, _ := c.Snapshot(); !fetchedAt.Equal(t0) {
		t.Errorf("cached fetchedAt = %v, want %v", fetchedAt, t0)
	}

	// The fake store never expires keys, so only the recorded fetch time can
	// send this read to the warehouse.
	clock.now = t0.Add(ttl + time.Minute)
	got, err = c.Get(context.Background())
	if err != nil || got != "schema from warehouse" {
		t.Fatalf("Get() after ttl = %q, %v", got, err)
	}
	if warehouse.calls != 1 {
		t.Errorf("warehouse fetches = %d, want 1", warehouse.calls)
	}
}
