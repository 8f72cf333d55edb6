// Package redis provides Redis-based adapters for the installer portal.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/ports"
)

var _ ports.UserStore = (*IdentityCache)(nil)

const defaultPrefix = "identity:"

// CacheSettings tunes an IdentityCache.
type CacheSettings struct {
	TTL    time.Duration // zero disables caching
	Prefix string        // default "identity:"
	Logger *slog.Logger  // Optional
}

// IdentityCacheOptions groups dependencies for IdentityCache.
type IdentityCacheOptions struct {
	Client   redis.UniversalClient // Required
	Next     ports.UserStore       // Required
	Settings CacheSettings
}

// IdentityCache is a read-through cache in front of a UserStore.
// Only successful lookups are cached. Redis failures degrade to the
// underlying store so a cache outage never denies a session.
type IdentityCache struct {
	client redis.UniversalClient
	next   ports.UserStore
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewIdentityCache creates a new Redis-backed identity cache.
func NewIdentityCache(opts IdentityCacheOptions) *IdentityCache {
	if opts.Client == nil {
		panic("IdentityCache requires a redis client")
	}
	if opts.Next == nil {
		panic("IdentityCache requires a UserStore")
	}
	prefix := opts.Settings.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	logger := opts.Settings.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityCache{
		client: opts.Client,
		next:   opts.Next,
		ttl:    opts.Settings.TTL,
		prefix: prefix,
		logger: logger.With("component", "identity_cache"),
	}
}

func (c *IdentityCache) GetByID(ctx context.Context, id string) (domainauth.Identity, error) {
	if c.ttl <= 0 || id == "" {
		return c.next.GetByID(ctx, id)
	}

	key := c.prefix + id
	if ident, ok := c.lookup(ctx, key); ok {
		return ident, nil
	}

	ident, err := c.next.GetByID(ctx, id)
	if err != nil {
		return domainauth.Identity{}, err
	}

	data, err := json.Marshal(ident)
	if err != nil {
		c.logger.WarnContext(ctx, "marshal identity failed", "user_id", id, "error", err)
		return ident, nil
	}
	if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
		c.logger.WarnContext(ctx, "cache identity failed", "user_id", id, "error", setErr)
	}
	return ident, nil
}

// lookup returns a cached identity. Corrupt entries are dropped.
func (c *IdentityCache) lookup(ctx context.Context, key string) (domainauth.Identity, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "identity cache read failed", "key", key, "error", err)
		}
		return domainauth.Identity{}, false
	}

	var ident domainauth.Identity
	if unmarshalErr := json.Unmarshal(data, &ident); unmarshalErr != nil || ident.ID == "" {
		c.logger.WarnContext(ctx, "dropping corrupt identity cache entry", "key", key)
		_ = c.client.Del(ctx, key).Err()
		return domainauth.Identity{}, false
	}
	return ident, true
}

// Invalidate drops the cached identity for id, e.g. after a role change.
func (c *IdentityCache) Invalidate(ctx context.Context, id string) error {
	if id == "" {
		return nil // Nothing to delete
	}
	if err := c.client.Del(ctx, c.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
