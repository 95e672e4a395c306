package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"haruboard/internal/models"
)

// item 包装缓存数据和过期时间
type item struct {
	profile   models.Profile
	expiresAt time.Time
}

// LRU is an in-process profile cache with a per-entry TTL.
type LRU struct {
	entries *lru.Cache[string, item]
	ttl     time.Duration
	now     func() time.Time
}

func NewLRU(size int, ttl time.Duration) (*LRU, error) {
	l, err := lru.New[string, item](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRU{entries: l, ttl: ttl, now: time.Now}, nil
}

func (c *LRU) Get(_ context.Context, uid string) (*models.Profile, bool) {
	val, ok := c.entries.Get(uid)
	if !ok {
		return nil, false
	}
	if c.now().After(val.expiresAt) {
		c.entries.Remove(uid)
		return nil, false
	}
	p := val.profile
	return &p, true
}

func (c *LRU) Set(_ context.Context, p *models.Profile) {
	c.entries.Add(p.UID, item{
		profile:   *p,
		expiresAt: c.now().Add(c.ttl),
	})
}

func (c *LRU) Delete(_ context.Context, uid string) {
	c.entries.Remove(uid)
}
