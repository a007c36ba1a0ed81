package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/ports"
)

const (
	fieldAllowed = "allowed"
	fieldDenied  = "denied"
)

// RedisRecorder acumula contadores em hashes do Redis:
//
//	<prefix>:total              allowed / denied (não expira)
//	<prefix>:type               <limitType>:allowed / <limitType>:denied
//	<prefix>:minute:<YYYYMMDDhhmm>  allowed / denied, com TTL
//
// Record fica no caminho da requisição, então cada gravação é limitada a
// timeout (padrão DefaultRecordTimeout).
type RedisRecorder struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

const DefaultRecordTimeout = 250 * time.Millisecond

var _ ports.StatsRecorder = (*RedisRecorder)(nil)

type RedisOption func(*RedisRecorder)

func WithPrefix(prefix string) RedisOption {
	return func(r *RedisRecorder) { r.prefix = strings.Trim(prefix, ":") }
}

// WithBucketTTL define a expiração dos buckets por minuto.
func WithBucketTTL(d time.Duration) RedisOption {
	return func(r *RedisRecorder) { r.ttl = d }
}

// WithTimeout limita a duração de cada Record.
func WithTimeout(d time.Duration) RedisOption {
	return func(r *RedisRecorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRedisRecorder(rdb *redis.Client, opts ...RedisOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:     rdb,
		prefix:  "ratelimit:stats",
		ttl:     24 * time.Hour,
		timeout: DefaultRecordTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRecorder) Record(ctx context.Context, ev domain.StatsEvent) error {
	if r == nil || r.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := fieldAllowed
	if ev.Limited {
		field = fieldDenied
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, r.prefix+":total", field, 1)
	pipe.HIncrBy(ctx, r.prefix+":type", string(ev.LimitType)+":"+field, 1)

	bucketKey := fmt.Sprintf("%s:minute:%s", r.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if r.ttl > 0 {
		pipe.Expire(ctx, bucketKey, r.ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisRecorder) Snapshot(ctx context.Context) (domain.StatsSnapshot, error) {
	pipe := r.rdb.Pipeline()
	total := pipe.HGetAll(ctx, r.prefix+":total")
	byType := pipe.HGetAll(ctx, r.prefix+":type")
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("read stats: %w", err)
	}

	snap := domain.StatsSnapshot{ByType: make(map[domain.LimitType]domain.Counters)}
	snap.Total.Allowed = parseCount(total.Val()[fieldAllowed])
	snap.Total.Denied = parseCount(total.Val()[fieldDenied])

	for field, raw := range byType.Val() {
		name, kind, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		lt := domain.LimitType(name)
		c := snap.ByType[lt]
		switch kind {
		case fieldAllowed:
			c.Allowed = parseCount(raw)
		case fieldDenied:
			c.Denied = parseCount(raw)
		default:
			continue
		}
		snap.ByType[lt] = c
	}
	return snap, nil
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
