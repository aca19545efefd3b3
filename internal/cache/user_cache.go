// Package cache provides a redis-backed read cache for the hot user data
// lookups performed on every processing attempt.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vibra-server/internal/config"
	"vibra-server/internal/model"
	"vibra-server/internal/repository"
)

// NewRedisClient builds the redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// CachedUserRepository wraps a UserRepository with a short-lived redis
// cache. Cache failures degrade to direct repository reads.
type CachedUserRepository struct {
	inner  repository.UserRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserRepository creates the caching decorator.
func NewCachedUserRepository(inner repository.UserRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) repository.UserRepository {
	return &CachedUserRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.Named("UserCache"),
	}
}

func (c *CachedUserRepository) GetProfile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	key := "profile:" + userID.String()
	var cached model.Profile
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	profile, err := c.inner.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, profile)
	return profile, nil
}

func (c *CachedUserRepository) GetAstralMap(ctx context.Context, userID uuid.UUID) (model.AstralMap, error) {
	key := "astral_map:" + userID.String()
	var cached model.AstralMap
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	astralMap, err := c.inner.GetAstralMap(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, astralMap)
	return astralMap, nil
}

func (c *CachedUserRepository) get(ctx context.Context, key string, dest any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("Corrupt cache entry, dropping", zap.String("key", key), zap.Error(err))
		c.client.Del(ctx, key)
		return false
	}
	return true
}

func (c *CachedUserRepository) set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
