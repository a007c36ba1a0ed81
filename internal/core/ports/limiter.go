// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
)

type RateLimiter interface {
	Check(ctx context.Context, identifier string, limitType domain.LimitType) domain.Verdict
}
