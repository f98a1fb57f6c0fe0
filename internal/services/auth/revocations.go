package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mcoot/battleship/internal/dependencies/clock"
	"github.com/mcoot/battleship/internal/model"
)

// Revocations remembers logged-out token IDs until the tokens would have expired
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// CleanExpired forgets entries past their expiry and returns how many went
	CleanExpired(now time.Time) int
}

// MemoryRevocations keeps revocations in process. Other server instances never see them.
type MemoryRevocations struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // token ID -> expiry
}

// NewMemoryRevocations creates an empty in-process revocation list
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Time)}
}

func (m *MemoryRevocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *MemoryRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

func (m *MemoryRevocations) CleanExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, expiresAt := range m.revoked {
		if now.After(expiresAt) {
			delete(m.revoked, id)
			removed++
		}
	}
	return removed
}

// DefaultRevocationPrefix namespaces revocation keys in redis
const DefaultRevocationPrefix = "bship:revoked"

// RedisRevocations shares revocations between server instances. Each entry is a
// key that expires together with its token, so there is nothing to clean.
type RedisRevocations struct {
	client *goredis.Client
	prefix string
	clock  clock.Clock
}

// NewRedisRevocations stores revocations under prefix in redis
func NewRedisRevocations(client *goredis.Client, prefix string, clock clock.Clock) *RedisRevocations {
	if prefix == "" {
		prefix = DefaultRevocationPrefix
	}
	return &RedisRevocations{client: client, prefix: prefix, clock: clock}
}

func (r *RedisRevocations) key(tokenID string) string {
	return r.prefix + ":" + tokenID
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: revoking token: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: checking revocation: %v", model.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

func (r *RedisRevocations) CleanExpired(now time.Time) int {
	return 0
}

var (
	_ Revocations = (*MemoryRevocations)(nil)
	_ Revocations = (*RedisRevocations)(nil)
)
