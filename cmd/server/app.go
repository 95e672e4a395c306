package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"haruboard/internal/auth"
	"haruboard/internal/cache"
	"haruboard/internal/config"
	"haruboard/internal/db"
	"haruboard/internal/logger"
	"haruboard/internal/repository"
	"haruboard/internal/services"
)

// app is the process-wide object graph.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	redis    *redis.Client
	provider *auth.LocalProvider
	sessions *services.SessionStore
	views    *services.ViewCounter
	posts    repository.PostRepository
}

func setup() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	gdb, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, gdb, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, gdb, err := setup()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: gdb}

	profileCache, err := a.profileCache(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	profiles := repository.NewProfileRepository(gdb, profileCache)

	a.provider = auth.NewLocalProvider(gdb, auth.LocalConfig{
		Secret:        cfg.TokenSecret,
		TTL:           cfg.TokenTTL,
		RefreshWindow: cfg.TokenRefreshWindow,
	}, log.Named("auth"))
	a.sessions = services.NewSessionStore(a.provider, profiles, log.Named("session"))
	a.sessions.Observe(func(_ context.Context, kind auth.EventKind, s *services.Session) {
		log.Info("session transition", zap.Stringer("kind", kind), zap.String("uid", s.UID()))
	})

	// 计数器通过帖子仓库写库，仓库又把浏览交给计数器
	a.posts = repository.NewPostRepository(gdb, profiles, repository.ViewRecorderFunc(func(id string) {
		a.views.Record(id)
	}), log.Named("posts"))
	a.views = services.NewViewCounter(a.posts, log.Named("views"), cfg.ViewFlushInterval, cfg.ViewBatchSize)
	return a, nil
}

func (a *app) profileCache(ctx context.Context) (cache.ProfileCache, error) {
	switch a.cfg.CacheBackend {
	case "redis":
		a.redis = redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", a.cfg.RedisAddr, err)
		}
		a.log.Info("profile cache: redis", zap.String("addr", a.cfg.RedisAddr))
		return cache.NewRedis(a.redis, a.cfg.CacheTTL, a.log.Named("cache")), nil
	default:
		a.log.Info("profile cache: lru", zap.Int("size", a.cfg.CacheSize))
		return cache.NewLRU(a.cfg.CacheSize, a.cfg.CacheTTL)
	}
}

func (a *app) close() {
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("close redis", zap.Error(err))
		}
	}
	if err := db.Close(a.db); err != nil {
		a.log.Warn("close database", zap.Error(err))
	}
	_ = a.log.Sync()
}
