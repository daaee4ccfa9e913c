package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/festlabs/festreg/internal/domain/settings"
	"github.com/redis/go-redis/v9"
)

// every Register call reads the registration_open gate; a short-TTL redis
// cache in front of the settings row keeps that read off postgres. Writes go
// through the underlying store and drop the cached copy, and the TTL bounds
// staleness if an invalidation is lost.
const (
	settingsKey = "festreg:settings:scheduler"
	settingsTTL = 5 * time.Second
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type SchedulerStore interface {
	Load(ctx context.Context) (settings.Scheduler, error)
	Configure(ctx context.Context, disableAt *time.Time) error
	SetRegistrationOpen(ctx context.Context, open bool) error
	MarkFired(ctx context.Context, at time.Time) (bool, error)
}

// SettingsCache wraps a SchedulerStore with a redis read-through cache.
type SettingsCache struct {
	next SchedulerStore
	rdb  *redis.Client
	log  *slog.Logger
}

func NewSettingsCache(cfg Config, next SchedulerStore, log *slog.Logger) *SettingsCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &SettingsCache{next: next, rdb: rdb, log: log}
}

func (c *SettingsCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *SettingsCache) Close() error {
	return c.rdb.Close()
}

func (c *SettingsCache) Load(ctx context.Context) (settings.Scheduler, error) {
	raw, err := c.rdb.Get(ctx, settingsKey).Bytes()
	if err == nil {
		var s settings.Scheduler
		if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
			return s, nil
		}
		// unreadable cache entry; fall through to the source of truth
	}

	s, err := c.next.Load(ctx)
	if err != nil {
		return settings.Scheduler{}, err
	}

	if raw, err := json.Marshal(s); err == nil {
		if setErr := c.rdb.Set(ctx, settingsKey, raw, settingsTTL).Err(); setErr != nil {
			c.log.DebugContext(ctx, "settings cache set failed", "err", setErr)
		}
	}

	return s, nil
}

func (c *SettingsCache) invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, settingsKey).Err(); err != nil {
		c.log.DebugContext(ctx, "settings cache invalidation failed", "err", err)
	}
}

func (c *SettingsCache) Configure(ctx context.Context, disableAt *time.Time) error {
	err := c.next.Configure(ctx, disableAt)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *SettingsCache) SetRegistrationOpen(ctx context.Context, open bool) error {
	err := c.next.SetRegistrationOpen(ctx, open)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *SettingsCache) MarkFired(ctx context.Context, at time.Time) (bool, error) {
	fired, err := c.next.MarkFired(ctx, at)
	if err == nil {
		c.invalidate(ctx)
	}
	return fired, err
}
