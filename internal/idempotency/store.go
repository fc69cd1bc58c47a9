// Package idempotency replays the stored response of a request retried with the same
// Idempotency-Key header.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is a captured response.
type Record struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store keeps captured responses and in-flight locks.
type Store interface {
	// Get returns nil and no error when nothing is stored under key.
	Get(ctx context.Context, key string) (*Record, error)
	// Lock claims key for one in-flight request. It reports false when already claimed.
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Save(ctx context.Context, key string, rec Record, ttl time.Duration) error
}

const (
	recordPrefix = "idem:rec:"
	lockPrefix   = "idem:lock:"
)

// RedisStore shares records across API instances.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, recordPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, lockPrefix+key, 1, ttl).Result()
}

func (s *RedisStore) Unlock(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, lockPrefix+key).Err()
}

func (s *RedisStore) Save(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, recordPrefix+key, raw, ttl).Err()
}

type entry struct {
	rec     Record
	expires time.Time
}

// MemoryStore is a single-instance Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]entry
	locks   map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string]entry{},
		locks:   map[string]time.Time{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if s.now().After(e.expires) {
		delete(s.records, key)
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (s *MemoryStore) Lock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if until, ok := s.locks[key]; ok && s.now().Before(until) {
		return false, nil
	}
	s.locks[key] = s.now().Add(ttl)
	return true, nil
}

func (s *MemoryStore) Unlock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

func (s *MemoryStore) Save(_ context.Context, key string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = entry{rec: rec, expires: s.now().Add(ttl)}
	return nil
}
