// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/jonboulle/clockwork"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/ports"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/services"
)

// SubjectFunc devolve o id do usuário autenticado, ou "" para anônimos.
type SubjectFunc func(r *http.Request) string

type Options struct {
	// Subject resolve a identidade autenticada. Padrão: SubjectFromRequest.
	Subject SubjectFunc
	Clock   clockwork.Clock
}

// NewRateLimiterMiddleware aplica o perfil limitType a todas as requisições
// do handler embrulhado. Um limitType desconhecido provoca panic já na
// montagem das rotas.
func NewRateLimiterMiddleware(limiter ports.RateLimiter, limitType domain.LimitType, opts Options) func(http.Handler) http.Handler {
	profile := domain.ProfileFor(limitType)
	if opts.Subject == nil {
		opts.Subject = SubjectFromRequest
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			identifier := services.ResolveIdentifier(RequestMetadata(r), opts.Subject(r))
			verdict := limiter.Check(r.Context(), identifier, limitType)

			if verdict.Limited {
				SetDenyHeaders(w.Header(), profile, verdict.RetryAfter, opts.Clock.Now())
				writeJSON(w, http.StatusTooManyRequests, NewDenyBody(profile, verdict.RetryAfter))
				return
			}

			w.Header().Set(HeaderRemaining, strconv.Itoa(verdict.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// Wrap é o atalho para proteger um único handler.
func Wrap(next http.HandlerFunc, limiter ports.RateLimiter, limitType domain.LimitType, subject SubjectFunc) http.HandlerFunc {
	return NewRateLimiterMiddleware(limiter, limitType, Options{Subject: subject})(next).ServeHTTP
}

// RequestMetadata extrai os cabeçalhos de endereço usados na identificação.
func RequestMetadata(r *http.Request) domain.RequestMetadata {
	return domain.RequestMetadata{
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RealIP:       r.Header.Get("X-Real-IP"),
	}
}
