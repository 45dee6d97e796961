// Package locking serializes commands on the same bottle or case across
// service instances. Row locks in Postgres remain the source of truth; the
// unit lock turns most races into a fast ErrUnitLocked instead of a blocked
// transaction.
package locking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cellarledger/internal/common"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UnitLocker acquires exclusive, expiring locks by key.
type UnitLocker interface {
	// Lock returns a release func, or common.ErrUnitLocked when the key is
	// held elsewhere.
	Lock(ctx context.Context, key string) (func(), error)
}

func BottleKey(id uuid.UUID) string {
	return fmt.Sprintf("lock:bottle:%s", id)
}

func CaseKey(id uuid.UUID) string {
	return fmt.Sprintf("lock:case:%s", id)
}

type redisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
	logger  *zap.Logger
}

func NewRedisLocker(client redis.Scripter, ttl time.Duration, retries int, logger *zap.Logger) UnitLocker {
	return &redisLocker{
		client:  redislock.New(client),
		ttl:     ttl,
		retries: retries,
		logger:  logger,
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), l.retries),
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, common.ErrUnitLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		// the caller's context may already be cancelled
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release unit lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// localLocker is an in-process UnitLocker for single-instance deployments
// and tests.
type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() UnitLocker {
	return &localLocker{held: make(map[string]struct{})}
}

func (l *localLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%s: %w", key, common.ErrUnitLocked)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
