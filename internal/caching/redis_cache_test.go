package caching

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRedis answers MULTI/EXEC batches in process and records them.
// Commands sent outside a transaction fail.
type scriptedRedis struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]int64
	batches [][]string
	failTx  error
}

func newScriptedRedis() *scriptedRedis {
	return &scriptedRedis{
		counts:  make(map[string]int64),
		expires: make(map[string]int64),
	}
}

func (s *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial not expected")
	}
}

func (s *scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		return fmt.Errorf("%s sent outside a transaction", cmd.Name())
	}
}

func (s *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		names := make([]string, 0, len(cmds))
		for _, cmd := range cmds {
			names = append(names, cmd.Name())
		}
		s.batches = append(s.batches, names)
		if s.failTx != nil {
			return s.failTx
		}

		for _, cmd := range cmds {
			args := cmd.Args()
			switch c := cmd.(type) {
			case *redis.IntCmd:
				key := args[1].(string)
				s.counts[key]++
				c.SetVal(s.counts[key])
			case *redis.BoolCmd:
				key := args[1].(string)
				if len(args) == 4 && args[3] == "NX" {
					if _, ok := s.expires[key]; ok {
						c.SetVal(false)
						continue
					}
				}
				s.expires[key] = args[2].(int64)
				c.SetVal(true)
			}
		}
		return nil
	}
}

func newScriptedCache(t *testing.T) (CacheService, *scriptedRedis) {
	t.Helper()
	fake := newScriptedRedis()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(fake)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheService(client), fake
}

func TestRedisCache_RateLimitCountsAndExpiresTogether(t *testing.T) {
	cache, fake := newScriptedCache(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		limited, err := cache.IsRateLimited(ctx, "override:actor", 2, time.Hour)
		require.NoError(t, err)
		assert.False(t, limited)
	}
	limited, err := cache.IsRateLimited(ctx, "override:actor", 2, time.Hour)
	require.NoError(t, err)
	assert.True(t, limited)

	require.Len(t, fake.batches, 3)
	for _, batch := range fake.batches {
		assert.Equal(t, []string{"multi", "incr", "expire", "exec"}, batch)
	}
	assert.Equal(t, int64(3600), fake.expires[rateLimitKey("override:actor")])
}

func TestRedisCache_RateLimitFailsClosed(t *testing.T) {
	cache, fake := newScriptedCache(t)
	fake.failTx = errors.New("connection reset")

	limited, err := cache.IsRateLimited(context.Background(), "override:actor", 10, time.Hour)

	assert.Error(t, err)
	assert.True(t, limited)
	assert.Empty(t, fake.counts)
	assert.Empty(t, fake.expires)
}
