// Package featurecache stores vision analysis results by trace ID so a later
// similar-sku request can reuse them. Redis is the primary tier with the
// catalog database as fallback; either tier alone keeps the cache usable.
package featurecache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/config"
	"github.com/orbitblue/nitamono/internal/models"
	"github.com/orbitblue/nitamono/internal/storage"
)

const keyPrefix = "vision_feature:"

// Cache is the two-tier trace_id -> vision features store.
type Cache struct {
	redis  *redis.Client
	store  storage.Storage
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache builds the cache. An empty redis addr or a failed ping disables
// the Redis tier; the cache then runs on the database alone.
func NewCache(cfg config.RedisConfig, store storage.Storage, opts ...Option) *Cache {
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c := &Cache{store: store, ttl: ttl, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.Addr == "" {
		c.logger.Info("redis not configured, feature cache uses database only")
		return c
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn("redis unreachable, feature cache uses database only",
			zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return c
	}
	c.redis = client
	c.logger.Info("redis connected", zap.String("addr", cfg.Addr))
	return c
}

// NewTraceID returns a globally unique trace ID for a vision analysis result.
func NewTraceID() string {
	u := uuid.New()
	return fmt.Sprintf("vision_%s_%d", hex.EncodeToString(u[:])[:16], time.Now().Unix())
}

// Put saves a feature record under rec.TraceID. A successful Redis write is
// enough; the database is only written when Redis is down or disabled.
func (c *Cache) Put(ctx context.Context, rec *models.FeatureRecord) error {
	if rec == nil || rec.TraceID == "" {
		return errors.New("feature record needs a trace_id")
	}
	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.ExpiresAt = stored.CreatedAt.Add(c.ttl)

	if c.redis != nil {
		payload, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("encode feature record: %w", err)
		}
		err = c.redis.Set(ctx, keyPrefix+stored.TraceID, payload, c.ttl).Err()
		if err == nil {
			c.logger.Debug("feature record cached in redis", zap.String("trace_id", stored.TraceID))
			return nil
		}
		c.logger.Warn("redis write failed, falling back to database",
			zap.String("trace_id", stored.TraceID), zap.Error(err))
	}

	if err := c.store.PutFeatureRecord(ctx, &stored); err != nil {
		return fmt.Errorf("store feature record: %w", err)
	}
	c.logger.Debug("feature record cached in database", zap.String("trace_id", stored.TraceID))
	return nil
}

// Get returns the feature record for traceID. A Redis miss or error falls
// through to the database; a miss in both reports storage.ErrNotFound.
func (c *Cache) Get(ctx context.Context, traceID string) (*models.FeatureRecord, error) {
	if traceID == "" {
		return nil, fmt.Errorf("trace %q: %w", traceID, storage.ErrNotFound)
	}

	if c.redis != nil {
		raw, err := c.redis.Get(ctx, keyPrefix+traceID).Result()
		switch {
		case err == nil:
			var rec models.FeatureRecord
			if uerr := json.Unmarshal([]byte(raw), &rec); uerr == nil {
				rec.TraceID = traceID
				c.logger.Debug("feature record served from redis", zap.String("trace_id", traceID))
				return &rec, nil
			}
			c.logger.Warn("corrupt feature record in redis, trying database", zap.String("trace_id", traceID))
		case errors.Is(err, redis.Nil):
			// Miss; the record may predate the Redis tier.
		default:
			c.logger.Warn("redis read failed, trying database",
				zap.String("trace_id", traceID), zap.Error(err))
		}
	}

	rec, err := c.store.GetFeatureRecord(ctx, traceID)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("feature record served from database", zap.String("trace_id", traceID))
	return rec, nil
}

// DeleteExpired removes expired rows from the database tier. Redis entries
// expire on their own.
func (c *Cache) DeleteExpired(ctx context.Context) (int64, error) {
	return c.store.DeleteExpiredFeatures(ctx)
}

// Close releases the Redis connection if one was established.
func (c *Cache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
