// Package handlers agrupa handlers HTTP da aplicação de demonstração.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/ports"
)

// OperationHandler responde com uma mensagem simples para verificar o limiter.
// Representa a funcionalidade protegida, que fica fora deste serviço.
func OperationHandler(limitType domain.LimitType) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":   "Request successful",
			"limitType": string(limitType),
		})
	}
}

// StatsHandler expõe os contadores de decisões.
func StatsHandler(recorder ports.StatsRecorder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if recorder == nil {
			http.Error(w, "stats disabled", http.StatusNotFound)
			return
		}
		snap, err := recorder.Snapshot(r.Context())
		if err != nil {
			logger.Warn("failed to read rate limit stats", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// HealthHandler informa o backend em uso. O serviço segue saudável mesmo com
// o Redis fora, já que o limiter degrada para memória.
func HealthHandler(backend string, sharedConnected func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"status": "ok", "backend": backend}
		if sharedConnected != nil {
			body["redisConnected"] = sharedConnected()
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
