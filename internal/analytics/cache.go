package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "analytics:version"
	bumpChannel     = "documents.bump"
)

// Cache stores computed aggregates in Redis under a global version. Any
// document write bumps the version, so stale entries are never read again
// and expire with their TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	origin string
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl, origin: uuid.NewString()}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"analytics"}, parts...), ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// fetchJSON loads a cached value or populates it using the loader.
func fetchJSON[T any](ctx context.Context, c *Cache, key string, loader func(context.Context) (T, error)) (T, error) {
	var out T
	if !c.enabled() {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if err := json.Unmarshal(payload, &out); err == nil {
			return out, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return out, err
	}
	out, err = loader(ctx)
	if err != nil {
		return out, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return out, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Bump invalidates the cache by incrementing the global version and publishing an event.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, c.origin+":"+strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation calls onBump for every version bump published by
// another process, until ctx is done. Bumps made through this Cache are skipped.
func (c *Cache) ListenForInvalidation(ctx context.Context, onBump func(context.Context)) error {
	if !c.enabled() || onBump == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, bumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				origin, _, found := strings.Cut(msg.Payload, ":")
				if !found || origin == c.origin {
					continue
				}
				onBump(ctx)
			}
		}
	}()
	return nil
}

func keyDashboard(asOf time.Time) []string {
	return []string{"dashboard", asOf.Format("2006-01-02")}
}

func keyAging(asOf time.Time) []string {
	return []string{"aging_ar", asOf.Format("2006-01-02")}
}
