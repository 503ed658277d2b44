// Package locks guards background jobs against overlapping dispatch.
// A lock is a dedup guard keyed by job identity: a second acquisition
// while the lock is held fails instead of queueing.
package locks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed job holds its lock before the
// next tick may retry.
const DefaultTTL = 300 * time.Second

// Job lock keys.
const (
	JobSyncUsage = "jobs:sync_usage"
)

// Manager is an atomic set-if-absent lock with expiry.
type Manager interface {
	// Acquire attempts to take the lock. It returns false when the lock
	// is already held; held locks are expected contention, not errors.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees the lock early. Locks also expire naturally at TTL.
	Release(ctx context.Context, key string) error
}

// RedisManager implements Manager on a shared Redis so at-most-one
// execution holds across a process fleet.
type RedisManager struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisManager constructs a Redis-backed lock manager.
func NewRedisManager(client *redis.Client, keyPrefix string) *RedisManager {
	if keyPrefix == "" {
		keyPrefix = "resellerd:locks:"
	}
	return &RedisManager{client: client, keyPrefix: keyPrefix}
}

// Acquire takes the lock via SETNX with TTL in a single atomic call.
func (m *RedisManager) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m == nil || m.client == nil {
		return false, errors.New("locks: redis client not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ok, errSet := m.client.SetNX(ctx, m.keyPrefix+key, "1", ttl).Result()
	if errSet != nil {
		return false, errSet
	}
	return ok, nil
}

// Release deletes the lock key.
func (m *RedisManager) Release(ctx context.Context, key string) error {
	if m == nil || m.client == nil {
		return errors.New("locks: redis client not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return m.client.Del(ctx, m.keyPrefix+key).Err()
}

// MemoryManager implements Manager in-process for single-node
// deployments and tests.
type MemoryManager struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryManager constructs an in-process lock manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		entries: map[string]time.Time{},
		now:     time.Now,
	}
}

// Acquire takes the lock unless an unexpired holder exists.
func (m *MemoryManager) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("locks: empty key")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if expiry, held := m.entries[key]; held && now.Before(expiry) {
		return false, nil
	}
	m.entries[key] = now.Add(ttl)
	return true, nil
}

// Release frees the lock.
func (m *MemoryManager) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, strings.TrimSpace(key))
	return nil
}
