package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cellarledger/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CacheService holds the location cache and the per-actor counters used
// for rate limiting. Commitment figures are never cached.
type CacheService interface {
	// GetLocation returns nil, nil on a cache miss.
	GetLocation(ctx context.Context, id uuid.UUID) (*models.Location, error)
	SetLocation(ctx context.Context, location *models.Location, ttl time.Duration) error
	DeleteLocation(ctx context.Context, id uuid.UUID) error

	// IsRateLimited counts one hit against key and reports whether the
	// count within the window now exceeds limit.
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func locationKey(id uuid.UUID) string {
	return fmt.Sprintf("cellarledger:location:%s", id)
}

func rateLimitKey(key string) string {
	return fmt.Sprintf("cellarledger:ratelimit:%s", key)
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetLocation(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	data, err := r.client.Get(ctx, locationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var location models.Location
	if err := json.Unmarshal(data, &location); err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *redisCacheService) SetLocation(ctx context.Context, location *models.Location, ttl time.Duration) error {
	data, err := json.Marshal(location)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, locationKey(location.ID), data, ttl).Err()
}

func (r *redisCacheService) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	return r.client.Del(ctx, locationKey(id)).Err()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := rateLimitKey(key)

	// The window starts with the first hit; NX keeps later hits from
	// extending it.
	var count *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, cacheKey)
		pipe.ExpireNX(ctx, cacheKey, window)
		return nil
	})
	if err != nil {
		return true, err
	}

	return count.Val() > int64(limit), nil
}

type memoryEntry struct {
	location  models.Location
	expiresAt time.Time
}

type memoryCounter struct {
	count     int
	expiresAt time.Time
}

type memoryCacheService struct {
	mu        sync.Mutex
	now       func() time.Time
	locations map[uuid.UUID]memoryEntry
	counters  map[string]memoryCounter
}

// NewMemoryCacheService returns an in-process CacheService for
// deployments without Redis.
func NewMemoryCacheService() CacheService {
	return &memoryCacheService{
		now:       time.Now,
		locations: make(map[uuid.UUID]memoryEntry),
		counters:  make(map[string]memoryCounter),
	}
}

func (m *memoryCacheService) GetLocation(_ context.Context, id uuid.UUID) (*models.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locations[id]
	if !ok || m.now().After(entry.expiresAt) {
		delete(m.locations, id)
		return nil, nil
	}
	location := entry.location
	return &location, nil
}

func (m *memoryCacheService) SetLocation(_ context.Context, location *models.Location, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[location.ID] = memoryEntry{location: *location, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *memoryCacheService) DeleteLocation(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, id)
	return nil
}

func (m *memoryCacheService) IsRateLimited(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = memoryCounter{expiresAt: now.Add(window)}
	}
	c.count++
	m.counters[key] = c
	return c.count > limit, nil
}
