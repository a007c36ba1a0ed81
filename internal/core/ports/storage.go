// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"
)

// CounterStore guarda, por chave, a sequência ordenada de instantes das
// requisições aceitas.
//
// Implementações absorvem falhas de infraestrutura (fail-open); um erro
// retornado indica contexto cancelado ou falha de ciclo de vida.
type CounterStore interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) ([]time.Time, error)
	Add(ctx context.Context, key string, ts time.Time, ttl time.Duration) error
	Prune(ctx context.Context, key string, windowStart time.Time, ttl time.Duration) error
	Shutdown(ctx context.Context) error
}
