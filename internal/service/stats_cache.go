package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutordesk-api/internal/observability"
)

const teacherStatsKey = "tutordesk:stats:teachers"

// StatsCache keeps the per-teacher assignment totals in Redis. A cache without a client
// misses on every read.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStatsCache constructs the cache. client may be nil.
func NewStatsCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *StatsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "stats_cache").Logger(),
	}
}

func (c *StatsCache) load(ctx context.Context, dst interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}

	cached, err := c.client.Get(ctx, teacherStatsKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read stats cache")
		}
		observability.StatsCacheLookups().WithLabelValues("miss").Inc()
		return false
	}

	if err := json.Unmarshal([]byte(cached), dst); err != nil {
		c.logger.Warn().Err(err).Msg("discarding malformed stats cache entry")
		observability.StatsCacheLookups().WithLabelValues("miss").Inc()
		return false
	}

	observability.StatsCacheLookups().WithLabelValues("hit").Inc()
	return true
}

func (c *StatsCache) store(ctx context.Context, value interface{}) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, teacherStatsKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store stats cache")
	}
}

// Invalidate drops the cached totals.
func (c *StatsCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, teacherStatsKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate stats cache")
	}
}
