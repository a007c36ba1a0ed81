package stats

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/ports"
)

// MemoryRecorder mantém os contadores no processo. Não expira nada.
type MemoryRecorder struct {
	allowed atomic.Int64
	denied  atomic.Int64

	mu     sync.Mutex
	byType map[domain.LimitType]domain.Counters
}

var _ ports.StatsRecorder = (*MemoryRecorder)(nil)

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{byType: make(map[domain.LimitType]domain.Counters)}
}

func (m *MemoryRecorder) Record(_ context.Context, ev domain.StatsEvent) error {
	if ev.Limited {
		m.denied.Inc()
	} else {
		m.allowed.Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.byType[ev.LimitType]
	if ev.Limited {
		c.Denied++
	} else {
		c.Allowed++
	}
	m.byType[ev.LimitType] = c
	return nil
}

func (m *MemoryRecorder) Snapshot(_ context.Context) (domain.StatsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[domain.LimitType]domain.Counters, len(m.byType))
	for k, v := range m.byType {
		byType[k] = v
	}
	return domain.StatsSnapshot{
		Total: domain.Counters{
			Allowed: m.allowed.Load(),
			Denied:  m.denied.Load(),
		},
		ByType: byType,
	}, nil
}
