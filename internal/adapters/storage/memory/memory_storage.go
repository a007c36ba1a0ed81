// Package memory disponibiliza a implementação do storage em memória do processo.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/ports"
)

const (
	DefaultReapInterval = 5 * time.Minute
	DefaultRetention    = 10 * time.Minute
)

// Storage mantém os registros de cada chave no próprio processo.
//
// Cada operação é protegida por um único mutex. Um reaper em background,
// iniciado por Init e encerrado por Shutdown, remove chaves que deixaram
// de ser consultadas.
type Storage struct {
	mu      sync.Mutex
	records map[string][]time.Time

	clock        clockwork.Clock
	logger       *zap.Logger
	reapInterval time.Duration
	retention    time.Duration

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	stopped   chan struct{}
}

var _ ports.CounterStore = (*Storage)(nil)

type Option func(*Storage)

func WithClock(c clockwork.Clock) Option {
	return func(s *Storage) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Storage) { s.logger = l }
}

func WithReapInterval(d time.Duration) Option {
	return func(s *Storage) { s.reapInterval = d }
}

func WithRetention(d time.Duration) Option {
	return func(s *Storage) { s.retention = d }
}

func New(opts ...Option) *Storage {
	s := &Storage{
		records:      make(map[string][]time.Time),
		clock:        clockwork.NewRealClock(),
		logger:       zap.NewNop(),
		reapInterval: DefaultReapInterval,
		retention:    DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init inicia o reaper. Chamadas repetidas não criam um segundo reaper.
func (s *Storage) Init(_ context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.cancel != nil {
		return nil
	}
	if s.reapInterval <= 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	ticker := s.clock.NewTicker(s.reapInterval)

	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				s.Reap()
			}
		}
	}()

	s.cancel = cancel
	s.stopped = stopped
	return nil
}

// Shutdown para o reaper, espera sua saída e limpa todo o estado.
// Pode ser chamado mais de uma vez.
func (s *Storage) Shutdown(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.stopped:
		case <-ctx.Done():
			return fmt.Errorf("timed out while stopping reaper: %w", ctx.Err())
		}
		s.cancel = nil
		s.stopped = nil
	}

	s.Clear()
	return nil
}

func (s *Storage) Get(_ context.Context, key string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.records[key]), nil
}

// Add registra ts mantendo a sequência em ordem não decrescente.
func (s *Storage) Add(_ context.Context, key string, ts time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = insertSorted(s.records[key], ts)
	return nil
}

func (s *Storage) Prune(_ context.Context, key string, windowStart time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return nil
	}

	kept := after(record, windowStart)
	if len(kept) == 0 {
		delete(s.records, key)
		return nil
	}
	s.records[key] = kept
	return nil
}

// Reap remove instantes mais antigos que a retenção e apaga as chaves que
// ficarem vazias.
func (s *Storage) Reap() {
	cutoff := s.clock.Now().Add(-s.retention)

	s.mu.Lock()
	removed := 0
	for key, record := range s.records {
		kept := after(record, cutoff)
		if len(kept) == 0 {
			delete(s.records, key)
			removed++
			continue
		}
		s.records[key] = kept
	}
	remaining := len(s.records)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("reaped idle rate limit keys",
			zap.Int("removed", removed),
			zap.Int("remaining", remaining),
		)
	}
}

// Clear descarta todos os registros.
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.records)
}

// Len devolve o número de chaves com registros.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

func insertSorted(record []time.Time, ts time.Time) []time.Time {
	if n := len(record); n == 0 || !ts.Before(record[n-1]) {
		return append(record, ts)
	}
	i, _ := slices.BinarySearchFunc(record, ts, func(e, target time.Time) int {
		if e.After(target) {
			return 1
		}
		return -1
	})
	return slices.Insert(record, i, ts)
}

// after filtra in-place os instantes estritamente posteriores a cutoff.
func after(record []time.Time, cutoff time.Time) []time.Time {
	kept := record[:0]
	for _, ts := range record {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
