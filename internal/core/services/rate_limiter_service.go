package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/ports"
)

// Config agrega as dependências opcionais do serviço de rate limiting.
type Config struct {
	Clock  clockwork.Clock
	Logger *zap.Logger
	Stats  ports.StatsRecorder
}

// RateLimiterService implementa o algoritmo de janela deslizante (sliding
// window log) sobre um CounterStore.
//
// Os passos prune → get → add não são atômicos entre chamadas concorrentes
// para a mesma chave: duas requisições simultâneas podem ver a contagem
// abaixo do teto e ambas passarem. O excesso é limitado ao número de
// checagens em voo para a chave.
type RateLimiterService struct {
	storage ports.CounterStore
	clock   clockwork.Clock
	logger  *zap.Logger
	stats   ports.StatsRecorder
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)

// NewRateLimiterService cria uma nova instância do serviço.
func NewRateLimiterService(storage ports.CounterStore, cfg Config) (*RateLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required: %w", domain.ErrInvalidConfig)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &RateLimiterService{
		storage: storage,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		stats:   cfg.Stats,
	}, nil
}

// Check decide se o identificador pode executar mais uma operação do tipo
// informado. Nunca devolve erro: falhas de storage resultam em permissão.
// Um limitType desconhecido provoca panic (ver domain.ProfileFor).
func (s *RateLimiterService) Check(ctx context.Context, identifier string, limitType domain.LimitType) domain.Verdict {
	profile := domain.ProfileFor(limitType)
	now := s.clock.Now()
	windowStart := now.Add(-profile.Window)
	key := buildKey(limitType, identifier)
	ttl := profile.TTL()

	if err := s.storage.Prune(ctx, key, windowStart, ttl); err != nil {
		s.logger.Warn("rate limit prune failed", zap.String("key", key), zap.Error(err))
	}

	timestamps, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Warn("rate limit read failed, allowing request", zap.String("key", key), zap.Error(err))
		return s.decide(ctx, limitType, now, domain.Verdict{Remaining: profile.MaxRequests - 1})
	}

	if len(timestamps) >= profile.MaxRequests {
		return s.decide(ctx, limitType, now, domain.Verdict{
			Limited:    true,
			RetryAfter: retryAfter(oldest(timestamps), profile.Window, now),
			Remaining:  0,
		})
	}

	if err := s.storage.Add(ctx, key, now, ttl); err != nil {
		s.logger.Warn("rate limit write failed", zap.String("key", key), zap.Error(err))
	}

	return s.decide(ctx, limitType, now, domain.Verdict{
		Remaining: max(0, profile.MaxRequests-len(timestamps)-1),
	})
}

// CheckUser aplica o limite a um usuário já autenticado, para chamadas que
// não passam pela camada HTTP.
func (s *RateLimiterService) CheckUser(ctx context.Context, userID string, limitType domain.LimitType) domain.ActionResult {
	verdict := s.Check(ctx, UserIdentifier(userID), limitType)
	if !verdict.Limited {
		return domain.ActionResult{Success: true}
	}
	return domain.ActionResult{
		Success:    false,
		Error:      domain.ProfileFor(limitType).DenyMessage(verdict.RetryAfter),
		RetryAfter: verdict.RetryAfter,
	}
}

func (s *RateLimiterService) decide(ctx context.Context, limitType domain.LimitType, at time.Time, v domain.Verdict) domain.Verdict {
	if s.stats != nil {
		ev := domain.StatsEvent{LimitType: limitType, Limited: v.Limited, At: at}
		if err := s.stats.Record(ctx, ev); err != nil {
			s.logger.Debug("failed to record rate limit stats", zap.Error(err))
		}
	}
	return v
}

// retryAfter devolve em segundos inteiros quanto falta para o instante mais
// antigo sair da janela, com mínimo de 1.
func retryAfter(oldest time.Time, window time.Duration, now time.Time) int {
	wait := oldest.Add(window).Sub(now)
	seconds := int((wait + time.Second - 1) / time.Second)
	return max(1, seconds)
}

func oldest(timestamps []time.Time) time.Time {
	first := timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts.Before(first) {
			first = ts
		}
	}
	return first
}

func buildKey(limitType domain.LimitType, identifier string) string {
	return fmt.Sprintf("ratelimit:%s:%s", limitType, identifier)
}
