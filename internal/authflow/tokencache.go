package authflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sassoftware/sas-viya-mcp-server/internal/contextstore"
)

// TokenCache stores exchanged access tokens so repeated resolutions of the
// same refresh token skip the network round trip.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, token string, ttl time.Duration)
}

// cacheKey derives a stable cache key from the host and the secret material
// without storing the secret itself.
func cacheKey(host, secret string) string {
	sum := sha256.Sum256([]byte(host + "\x00" + secret))
	return "viya:token:" + hex.EncodeToString(sum[:])
}

// MemoryTokenCache backs the token cache with the in-process context store.
type MemoryTokenCache struct {
	store *contextstore.Store
}

// NewMemoryTokenCache returns a process-local token cache. Close it when it
// is no longer needed to stop the store's expiry sweep.
func NewMemoryTokenCache() *MemoryTokenCache {
	// New only fails for a negative capacity.
	store, _ := contextstore.New(0)
	return &MemoryTokenCache{store: store}
}

func (m *MemoryTokenCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := m.store.Get(key)
	if !ok {
		return "", false
	}
	tok, ok := v.(string)
	return tok, ok
}

func (m *MemoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) {
	if ttl <= 0 {
		m.store.Set(key, token)
		return
	}
	m.store.SetTTL(key, token, ttl)
}

// Close stops the backing store and drops cached tokens.
func (m *MemoryTokenCache) Close() { m.store.Close() }

// redisCache shares exchanged tokens across instances.
type redisCache struct {
	rdb *redis.Client
}

// NewRedisTokenCache returns a token cache backed by the Redis instance at
// addr. Connectivity is verified lazily on first use.
func NewRedisTokenCache(addr string) TokenCache {
	return &redisCache{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *redisCache) Get(ctx context.Context, key string) (string, bool) {
	tok, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return tok, true
}

func (r *redisCache) Set(ctx context.Context, key, token string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	// Best effort. A failed write only costs an extra exchange later.
	_ = r.rdb.Set(ctx, key, token, ttl).Err()
}
