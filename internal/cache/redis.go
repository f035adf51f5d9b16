// Package cache shares the table description between service replicas through
// Redis so a fleet issues one describe per TTL instead of one per process.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Source produces a schema description on a miss.
type Source interface {
	FetchSchema(ctx context.Context) (string, error)
}

// Store is the subset of redis.Cmdable the schema source uses.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings so misconfiguration surfaces at startup.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// sharedSchema is the Redis value. FetchedAt is the warehouse fetch time so
// every replica ages the description from the same instant.
type sharedSchema struct {
	Description string    `json:"description"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// RedisSchemaSource reads the description from Redis and falls through to the
// wrapped source on a miss. Redis failures degrade to the wrapped source.
type RedisSchemaSource struct {
	rdb  Store
	next Source
	key  string
	ttl  time.Duration
	now  func() time.Time
}

func NewRedisSchemaSource(rdb Store, next Source, key string, ttl time.Duration) *RedisSchemaSource {
	if key == "" {
		key = "arquery:schema"
	}
	return &RedisSchemaSource{rdb: rdb, next: next, key: key, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *RedisSchemaSource) WithClock(now func() time.Time) *RedisSchemaSource {
	s.now = now
	return s
}

func (s *RedisSchemaSource) FetchSchema(ctx context.Context) (string, error) {
	desc, _, err := s.FetchSchemaAt(ctx)
	return desc, err
}

// FetchSchemaAt returns the shared description with its original fetch time,
// or fetches from the wrapped source and publishes the result.
func (s *RedisSchemaSource) FetchSchemaAt(ctx context.Context) (string, time.Time, error) {
	if shared, ok := s.read(ctx); ok {
		log.Debug().Str("key", s.key).Time("fetched_at", shared.FetchedAt).Msg("schema served from redis")
		return shared.Description, shared.FetchedAt, nil
	}

	desc, err := s.next.FetchSchema(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	fetchedAt := s.now()
	body, err := json.Marshal(sharedSchema{Description: desc, FetchedAt: fetchedAt})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode shared schema: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, string(body), s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("redis schema write failed")
	}
	return desc, fetchedAt, nil
}

// read reports a usable shared entry. Unreadable or already expired values
// count as a miss.
func (s *RedisSchemaSource) read(ctx context.Context) (sharedSchema, bool) {
	var shared sharedSchema
	val, err := s.rdb.Get(ctx, s.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", s.key).Msg("redis schema read failed, falling back to warehouse")
		}
		return shared, false
	}
	if err := json.Unmarshal([]byte(val), &shared); err != nil || shared.Description == "" || shared.FetchedAt.IsZero() {
		log.Warn().Str("key", s.key).Msg("unreadable shared schema, refetching")
		return shared, false
	}
	if s.ttl > 0 && s.now().Sub(shared.FetchedAt) >= s.ttl {
		return shared, false
	}
	return shared, true
}

// Invalidate removes the shared copy so the next fetch hits the warehouse.
func (s *RedisSchemaSource) Invalidate(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}
