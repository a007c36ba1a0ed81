// Package redis disponibiliza a implementação do storage baseada em Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/storage/memory"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/ports"
)

const (
	DefaultOpTimeout         = 250 * time.Millisecond
	DefaultReconnectInterval = 5 * time.Second

	degradedLogInterval = 10 * time.Second
)

// Storage guarda a sequência de cada chave como uma lista JSON de instantes
// em milissegundos, com TTL nativo do Redis.
//
// A conexão é aberta na primeira operação. Se ela falhar, ou se qualquer
// comando falhar, a operação é feita no storage em memória: rate limiting
// nunca bloqueia a funcionalidade só porque o Redis está fora.
type Storage struct {
	cfg      Config
	options  *redis.Options
	fallback *memory.Storage
	logger   *zap.Logger
	clock    clockwork.Clock

	mu        sync.Mutex
	client    *redis.Client
	closed    bool
	reconnect *rate.Limiter
	connected atomic.Bool

	degradedLog rate.Sometimes
}

var _ ports.CounterStore = (*Storage)(nil)

type Config struct {
	URL               string
	OpTimeout         time.Duration
	ReconnectInterval time.Duration
}

type Option func(*Storage)

func WithLogger(l *zap.Logger) Option {
	return func(s *Storage) { s.logger = l }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Storage) { s.clock = c }
}

// WithFallback substitui o storage em memória usado quando o Redis falha.
func WithFallback(f *memory.Storage) Option {
	return func(s *Storage) { s.fallback = f }
}

func New(cfg Config, opts ...Option) (*Storage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis url is required: %w", domain.ErrInvalidConfig)
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	options, err := ClientOptions(cfg.URL, cfg.OpTimeout)
	if err != nil {
		return nil, err
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}

	s := &Storage{
		cfg:         cfg,
		options:     options,
		logger:      zap.NewNop(),
		clock:       clockwork.NewRealClock(),
		reconnect:   rate.NewLimiter(rate.Every(cfg.ReconnectInterval), 1),
		degradedLog: rate.Sometimes{Interval: degradedLogInterval},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fallback == nil {
		s.fallback = memory.New(memory.WithClock(s.clock), memory.WithLogger(s.logger))
	}
	return s, nil
}

// ClientOptions interpreta a URL do Redis e aplica timeout a todas as etapas
// do cliente. O prazo do contexto de cada comando também é respeitado: um
// Redis travado não segura a requisição além dele.
func ClientOptions(url string, timeout time.Duration) (*redis.Options, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", errors.Join(domain.ErrInvalidConfig, err))
	}
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	options.ContextTimeoutEnabled = true
	options.DialTimeout = timeout
	options.ReadTimeout = timeout
	options.WriteTimeout = timeout
	options.PoolTimeout = timeout
	return options, nil
}

// Init prepara o fallback local. A conexão com o Redis continua preguiçosa.
func (s *Storage) Init(ctx context.Context) error {
	return s.fallback.Init(ctx)
}

func (s *Storage) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	client := s.client
	s.client = nil
	s.connected.Store(false)
	s.mu.Unlock()

	var closeErr error
	if client != nil {
		closeErr = client.Close()
	}
	return errors.Join(closeErr, s.fallback.Shutdown(ctx))
}

// Connected informa se há uma conexão estabelecida com o Redis.
func (s *Storage) Connected() bool {
	return s.connected.Load()
}

func (s *Storage) Get(ctx context.Context, key string) ([]time.Time, error) {
	client := s.remote(ctx)
	if client == nil {
		return s.fallback.Get(ctx, key)
	}

	timestamps, err := s.load(ctx, client, key)
	if err != nil {
		s.degraded("get", key, err)
		return s.fallback.Get(ctx, key)
	}
	return timestamps, nil
}

func (s *Storage) Add(ctx context.Context, key string, ts time.Time, ttl time.Duration) error {
	client := s.remote(ctx)
	if client == nil {
		return s.fallback.Add(ctx, key, ts, ttl)
	}

	timestamps, err := s.load(ctx, client, key)
	if err == nil {
		timestamps = append(timestamps, ts)
		if n := len(timestamps); n > 1 && ts.Before(timestamps[n-2]) {
			slices.SortStableFunc(timestamps, func(a, b time.Time) int { return a.Compare(b) })
		}
		err = s.store(ctx, client, key, timestamps, ttl)
	}
	if err != nil {
		s.degraded("add", key, err)
		return s.fallback.Add(ctx, key, ts, ttl)
	}
	return nil
}

func (s *Storage) Prune(ctx context.Context, key string, windowStart time.Time, ttl time.Duration) error {
	client := s.remote(ctx)
	if client == nil {
		return s.fallback.Prune(ctx, key, windowStart, ttl)
	}

	timestamps, err := s.load(ctx, client, key)
	if err == nil {
		kept := slices.DeleteFunc(timestamps, func(ts time.Time) bool { return !ts.After(windowStart) })
		if len(kept) == 0 {
			err = s.delete(ctx, client, key)
		} else {
			err = s.store(ctx, client, key, kept, ttl)
		}
	}
	if err != nil {
		s.degraded("prune", key, err)
		return s.fallback.Prune(ctx, key, windowStart, ttl)
	}
	return nil
}

// remote devolve o cliente conectado, tentando conectar se ainda não houver
// conexão. Tentativas são espaçadas por ReconnectInterval; nil significa
// "use o fallback".
func (s *Storage) remote(ctx context.Context) *redis.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if s.client != nil {
		return s.client
	}
	if !s.reconnect.AllowN(s.clock.Now(), 1) {
		return nil
	}

	client := redis.NewClient(s.options)
	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		s.logger.Warn("redis connection failed, falling back to in-memory store",
			zap.String("addr", s.options.Addr),
			zap.Error(err),
		)
		return nil
	}

	s.client = client
	s.connected.Store(true)
	s.logger.Info("redis rate limiting enabled", zap.String("addr", s.options.Addr))
	return client
}

// load lê a sequência da chave. Dado corrompido vira lista vazia: preferimos
// subaplicar o limite por um instante a derrubar a funcionalidade.
func (s *Storage) load(ctx context.Context, client *redis.Client, key string) ([]time.Time, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	raw, err := client.Get(opCtx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrFromRemote(err)
	}

	timestamps, err := decode(raw)
	if err != nil {
		s.logger.Warn("discarding corrupt rate limit record",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, nil
	}
	return timestamps, nil
}

func (s *Storage) store(ctx context.Context, client *redis.Client, key string, timestamps []time.Time, ttl time.Duration) error {
	payload, err := encode(timestamps)
	if err != nil {
		return err
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := client.Set(opCtx, key, payload, ttl).Err(); err != nil {
		return ErrFromRemote(err)
	}
	return nil
}

func (s *Storage) delete(ctx context.Context, client *redis.Client, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := client.Del(opCtx, key).Err(); err != nil {
		return ErrFromRemote(err)
	}
	return nil
}

func (s *Storage) degraded(op, key string, err error) {
	s.degradedLog.Do(func() {
		s.logger.Warn("redis operation failed, using in-memory store",
			zap.String("op", op),
			zap.String("key", key),
			zap.Error(err),
		)
	})
}

func encode(timestamps []time.Time) ([]byte, error) {
	millis := make([]int64, len(timestamps))
	for i, ts := range timestamps {
		millis[i] = ts.UnixMilli()
	}
	return json.Marshal(millis)
}

func decode(raw []byte) ([]time.Time, error) {
	var millis []int64
	if err := json.Unmarshal(raw, &millis); err != nil {
		return nil, ErrFromDeserialization(err)
	}
	timestamps := make([]time.Time, len(millis))
	for i, ms := range millis {
		timestamps[i] = time.UnixMilli(ms)
	}
	return timestamps, nil
}
