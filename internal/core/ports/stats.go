package ports

import (
	"context"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
)

// StatsRecorder persiste contadores de decisões. É best-effort: quem chama
// registra o erro e segue.
type StatsRecorder interface {
	Record(ctx context.Context, ev domain.StatsEvent) error
	Snapshot(ctx context.Context) (domain.StatsSnapshot, error)
}
