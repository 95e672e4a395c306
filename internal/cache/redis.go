package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"haruboard/internal/models"
)

const keyPrefix = "profile:"

// Redis shares cached profiles between server instances. Redis failures
// are logged and treated as misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *zap.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, log: log}
}

func (c *Redis) Get(ctx context.Context, uid string) (*models.Profile, bool) {
	data, err := c.client.Get(ctx, keyPrefix+uid).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("profile cache get failed", zap.String("uid", uid), zap.Error(err))
		}
		return nil, false
	}
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		c.log.Warn("profile cache entry unreadable", zap.String("uid", uid), zap.Error(err))
		return nil, false
	}
	return &p, true
}

func (c *Redis) Set(ctx context.Context, p *models.Profile) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+p.UID, payload, c.ttl).Err(); err != nil {
		c.log.Warn("profile cache set failed", zap.String("uid", p.UID), zap.Error(err))
	}
}

func (c *Redis) Delete(ctx context.Context, uid string) {
	if err := c.client.Del(ctx, keyPrefix+uid).Err(); err != nil {
		c.log.Warn("profile cache delete failed", zap.String("uid", uid), zap.Error(err))
	}
}
