package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/adapters/storage/memory"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/services"
)

func newRouter(t *testing.T, clock clockwork.Clock, limitType domain.LimitType) *chi.Mux {
	t.Helper()
	limiter, err := services.NewRateLimiterService(memory.New(memory.WithClock(clock)), services.Config{Clock: clock})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(SubjectHeader("X-User-ID"))
	r.With(NewRateLimiterMiddleware(limiter, limitType, Options{Clock: clock})).
		Post("/login", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	return r
}

func doRequest(h http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_AllowsAndAttachesRemaining(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := newRouter(t, clock, domain.LimitAuth)

	for want := 4; want >= 0; want-- {
		rec := doRequest(r, map[string]string{"X-Forwarded-For": "203.0.113.10"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, strconv.Itoa(want), rec.Header().Get(HeaderRemaining))
	}
}

func TestMiddleware_RendersDenyContract(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := newRouter(t, clock, domain.LimitAuth)
	headers := map[string]string{"X-Forwarded-For": "203.0.113.10, 10.0.0.1"}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, doRequest(r, headers).Code)
	}

	rec := doRequest(r, headers)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "60", rec.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "5", rec.Header().Get(HeaderLimit))
	assert.Equal(t, "0", rec.Header().Get(HeaderRemaining))
	assert.Equal(t, clock.Now().Add(time.Minute).UTC().Format(time.RFC3339), rec.Header().Get(HeaderReset))

	var body DenyBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, DenyBody{
		Error: "Demasiadas solicitudes. Intente de nuevo en 60 segundos.",
		Code:  CodeRateLimited,
		Details: DenyDetails{
			RetryAfter:  60,
			LimitType:   domain.LimitAuth,
			MaxRequests: 5,
			WindowMs:    60000,
		},
	}, body)
}

func TestMiddleware_AuthenticatedSubjectFollowsTheUser(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := newRouter(t, clock, domain.LimitAuth)

	// the same user rotating addresses still shares one counter
	addrs := []string{"1.1.1.1", "2.2.2.2", "3.3.3.3", "4.4.4.4", "5.5.5.5"}
	for _, addr := range addrs {
		require.Equal(t, http.StatusOK, doRequest(r, map[string]string{"X-User-ID": "u1", "X-Forwarded-For": addr}).Code)
	}
	rec := doRequest(r, map[string]string{"X-User-ID": "u1", "X-Forwarded-For": "6.6.6.6"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// an anonymous caller from one of those addresses is unaffected
	rec = doRequest(r, map[string]string{"X-Forwarded-For": "1.1.1.1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubjectHeader_DisabledIgnoresClientIdentity(t *testing.T) {
	limiter, err := services.NewRateLimiterService(memory.New(), services.Config{})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(SubjectHeader(""))
	r.With(NewRateLimiterMiddleware(limiter, domain.LimitCheckout, Options{})).
		Post("/login", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		rec := doRequest(r, map[string]string{
			"X-Forwarded-For": "6.6.6.6",
			"X-User-ID":       strconv.Itoa(i),
		})
		codes[rec.Code]++
	}

	assert.Equal(t, map[int]int{http.StatusOK: 5, http.StatusTooManyRequests: 15}, codes)
}

func TestMiddleware_UnknownAddressSharesSentinelKey(t *testing.T) {
	limiter := &recordingLimiter{}
	h := NewRateLimiterMiddleware(limiter, domain.LimitSearch, Options{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	doRequest(h, nil)
	doRequest(h, map[string]string{"X-Real-IP": "198.51.100.7"})

	assert.Equal(t, []string{"ip:unknown", "ip:198.51.100.7"}, limiter.identifiers)
}

func TestWrap(t *testing.T) {
	limiter := &recordingLimiter{verdict: domain.Verdict{Remaining: 7}}
	h := Wrap(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}, limiter, domain.LimitWrite, func(*http.Request) string { return "admin" })

	rec := doRequest(h, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "7", rec.Header().Get(HeaderRemaining))
	assert.Equal(t, []string{"user:admin"}, limiter.identifiers)
	assert.Equal(t, []domain.LimitType{domain.LimitWrite}, limiter.types)
}

func TestNewRateLimiterMiddleware_UnknownTypePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRateLimiterMiddleware(&recordingLimiter{}, "nope", Options{})
	})
}

func TestMiddleware_NilLimiterPassesThrough(t *testing.T) {
	h := NewRateLimiterMiddleware(nil, domain.LimitDefault, Options{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := doRequest(h, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderRemaining))
}

type recordingLimiter struct {
	verdict     domain.Verdict
	identifiers []string
	types       []domain.LimitType
}

func (r *recordingLimiter) Check(_ context.Context, identifier string, limitType domain.LimitType) domain.Verdict {
	r.identifiers = append(r.identifiers, identifier)
	r.types = append(r.types, limitType)
	return r.verdict
}
