package services

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/stats"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/storage/memory"
	redisstorage "github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/storage/redis"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
)

func newSharedLimiter(t *testing.T, addr string) *RateLimiterService {
	t.Helper()
	storage, err := redisstorage.New(redisstorage.Config{
		URL:       "redis://" + addr,
		OpTimeout: 200 * time.Millisecond,
	}, redisstorage.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, storage.Init(context.Background()))
	t.Cleanup(func() { _ = storage.Shutdown(context.Background()) })

	service, err := NewRateLimiterService(storage, Config{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return service
}

func TestRateLimiter_AuthScenarioOnSharedStore(t *testing.T) {
	m := miniredis.RunT(t)
	service := newSharedLimiter(t, m.Addr())
	ctx := context.Background()

	for want := 4; want >= 0; want-- {
		v := service.Check(ctx, "user:alice", domain.LimitAuth)
		require.False(t, v.Limited, "request with remaining=%d should be allowed", want)
		assert.Equal(t, want, v.Remaining)
	}

	v := service.Check(ctx, "user:alice", domain.LimitAuth)
	assert.True(t, v.Limited)
	assert.GreaterOrEqual(t, v.RetryAfter, 1)
	assert.LessOrEqual(t, v.RetryAfter, 60)

	raw, err := m.Get("ratelimit:auth:user:alice")
	require.NoError(t, err)
	var millis []int64
	require.NoError(t, json.Unmarshal([]byte(raw), &millis))
	assert.Len(t, millis, 5)
	assert.Equal(t, 60*time.Second, m.TTL("ratelimit:auth:user:alice"))
}

func TestRateLimiter_SharedStoreOutageFailsOpen(t *testing.T) {
	m := miniredis.NewMiniRedis()
	require.NoError(t, m.Start())
	service := newSharedLimiter(t, m.Addr())
	ctx := context.Background()

	for want := 4; want >= 2; want-- {
		assert.Equal(t, want, service.Check(ctx, "ip:203.0.113.5", domain.LimitAuth).Remaining)
	}

	m.Close()

	// the history lives in redis, so counting restarts in the local store
	for want := 4; want >= 0; want-- {
		v := service.Check(ctx, "ip:203.0.113.5", domain.LimitAuth)
		require.False(t, v.Limited)
		assert.Equal(t, want, v.Remaining)
	}
	assert.True(t, service.Check(ctx, "ip:203.0.113.5", domain.LimitAuth).Limited)
}

func TestRateLimiter_StalledStatsBackendDoesNotDelayCheck(t *testing.T) {
	addr := stalledListener(t)

	opts, err := redisstorage.ClientOptions("redis://"+addr, 100*time.Millisecond)
	require.NoError(t, err)
	rdb := goredis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	service, err := NewRateLimiterService(memory.New(), Config{
		Logger: zaptest.NewLogger(t),
		Stats:  stats.NewRedisRecorder(rdb, stats.WithTimeout(100*time.Millisecond)),
	})
	require.NoError(t, err)

	start := time.Now()
	v := service.Check(context.Background(), "user:x", domain.LimitAuth)
	elapsed := time.Since(start)

	assert.False(t, v.Limited)
	assert.Equal(t, 4, v.Remaining)
	assert.Less(t, elapsed, time.Second)
}

// stalledListener accepts connections and never answers.
func stalledListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}
