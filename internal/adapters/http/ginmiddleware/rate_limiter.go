// Package ginmiddleware expõe o rate limiter como middleware do Gin.
package ginmiddleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/http/middleware"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/ports"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/services"
)

// SubjectFunc devolve o id do usuário autenticado, ou "" para anônimos.
type SubjectFunc func(*gin.Context) string

// RateLimit aplica o perfil limitType às requisições da cadeia de handlers.
// Sem limiter, as requisições passam direto.
func RateLimit(limiter ports.RateLimiter, limitType domain.LimitType, subject SubjectFunc) gin.HandlerFunc {
	profile := domain.ProfileFor(limitType)
	if subject == nil {
		subject = func(c *gin.Context) string { return middleware.SubjectFromRequest(c.Request) }
	}

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		identifier := services.ResolveIdentifier(middleware.RequestMetadata(c.Request), subject(c))
		verdict := limiter.Check(c.Request.Context(), identifier, limitType)

		if verdict.Limited {
			middleware.SetDenyHeaders(c.Writer.Header(), profile, verdict.RetryAfter, time.Now())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, middleware.NewDenyBody(profile, verdict.RetryAfter))
			return
		}

		c.Header(middleware.HeaderRemaining, strconv.Itoa(verdict.Remaining))
		c.Next()
	}
}
