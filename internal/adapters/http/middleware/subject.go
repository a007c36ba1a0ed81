package middleware

import (
	"context"
	"net/http"
	"strings"
)

type subjectKey struct{}

// WithSubject anexa ao contexto o id do usuário autenticado.
func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subjectID)
}

func SubjectFromContext(ctx context.Context) string {
	id, _ := ctx.Value(subjectKey{}).(string)
	return id
}

func SubjectFromRequest(r *http.Request) string {
	return SubjectFromContext(r.Context())
}

// SubjectHeader copia o cabeçalho informado para o contexto como identidade.
// Serve de ponte para a camada de autenticação, que fica fora deste serviço.
// Com header vazio a ponte fica desligada e as requisições seguem intactas.
func SubjectHeader(header string) func(http.Handler) http.Handler {
	header = strings.TrimSpace(header)
	return func(next http.Handler) http.Handler {
		if header == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
				r = r.WithContext(WithSubject(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
