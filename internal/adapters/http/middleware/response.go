package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
)

const (
	HeaderRetryAfter = "Retry-After"
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"

	CodeRateLimited = "RATE_LIMITED"
)

// DenyBody é o corpo JSON da resposta 429.
type DenyBody struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details DenyDetails `json:"details"`
}

type DenyDetails struct {
	RetryAfter  int              `json:"retryAfter"`
	LimitType   domain.LimitType `json:"limitType"`
	MaxRequests int              `json:"maxRequests"`
	WindowMs    int64            `json:"windowMs"`
}

func NewDenyBody(profile domain.LimitProfile, retryAfter int) DenyBody {
	return DenyBody{
		Error: profile.DenyMessage(retryAfter),
		Code:  CodeRateLimited,
		Details: DenyDetails{
			RetryAfter:  retryAfter,
			LimitType:   profile.Name,
			MaxRequests: profile.MaxRequests,
			WindowMs:    profile.Window.Milliseconds(),
		},
	}
}

// SetDenyHeaders escreve os cabeçalhos padrão de uma resposta bloqueada.
// X-RateLimit-Reset é o instante (RFC 3339, UTC) em que vale tentar de novo.
func SetDenyHeaders(h http.Header, profile domain.LimitProfile, retryAfter int, now time.Time) {
	h.Set(HeaderRetryAfter, strconv.Itoa(retryAfter))
	h.Set(HeaderLimit, strconv.Itoa(profile.MaxRequests))
	h.Set(HeaderRemaining, "0")
	h.Set(HeaderReset, now.Add(time.Duration(retryAfter)*time.Second).UTC().Format(time.RFC3339))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
