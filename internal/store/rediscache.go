package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/chess-arena-go/internal/obslog"
)

// ParseRedisURL builds client options from a redis:// URL.
func ParseRedisURL(redisURL string) (*redis.Options, error) {
	return redis.ParseURL(strings.TrimSpace(redisURL))
}

// CachedStore wraps a PlayerStore with a Redis read-through cache on
// directory lookups plus an online-presence set. Cache failures degrade to
// the inner store and are logged, never surfaced.
type CachedStore struct {
	inner PlayerStore
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCached(inner PlayerStore, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *CachedStore) keyPlayer(id string) string { return "arena:player:" + id }
func (c *CachedStore) keyOnline() string          { return "arena:online" }

func (c *CachedStore) Player(ctx context.Context, id string) (*Player, error) {
	raw, err := c.rdb.Get(ctx, c.keyPlayer(id)).Bytes()
	if err == nil {
		var p Player
		if uerr := json.Unmarshal(raw, &p); uerr == nil {
			return &p, nil
		}
	} else if err != redis.Nil {
		obslog.L().Warn("player_cache_get", zap.String("player_id", id), zap.Error(err))
	}

	p, err := c.inner.Player(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	if raw, merr := json.Marshal(p); merr == nil {
		if serr := c.rdb.Set(ctx, c.keyPlayer(id), raw, c.ttl).Err(); serr != nil {
			obslog.L().Warn("player_cache_set", zap.String("player_id", id), zap.Error(serr))
		}
	}
	return p, nil
}

func (c *CachedStore) Rating(ctx context.Context, id, mode string) (int, error) {
	return c.inner.Rating(ctx, id, mode)
}

// SaveRating writes through and drops the stale directory entry.
func (c *CachedStore) SaveRating(ctx context.Context, id, mode string, value int) error {
	if err := c.inner.SaveRating(ctx, id, mode, value); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, c.keyPlayer(id)).Err(); err != nil {
		obslog.L().Warn("player_cache_invalidate", zap.String("player_id", id), zap.Error(err))
	}
	return nil
}

func (c *CachedStore) InsertGame(ctx context.Context, rec *GameRecord) (int64, error) {
	return c.inner.InsertGame(ctx, rec)
}

// SetOnline / SetOffline maintain the presence set.
func (c *CachedStore) SetOnline(ctx context.Context, id string) {
	if err := c.rdb.SAdd(ctx, c.keyOnline(), id).Err(); err != nil {
		obslog.L().Warn("presence_add", zap.String("player_id", id), zap.Error(err))
	}
}

func (c *CachedStore) SetOffline(ctx context.Context, id string) {
	if err := c.rdb.SRem(ctx, c.keyOnline(), id).Err(); err != nil {
		obslog.L().Warn("presence_remove", zap.String("player_id", id), zap.Error(err))
	}
}

func (c *CachedStore) OnlineCount(ctx context.Context) (int64, error) {
	return c.rdb.SCard(ctx, c.keyOnline()).Result()
}
