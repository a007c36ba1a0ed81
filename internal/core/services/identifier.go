package services

import (
	"strings"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
)

const unknownAddress = "unknown"

// ResolveIdentifier deriva a chave estável do chamador.
//
// A identidade autenticada sempre tem prioridade: ela não muda quando o
// chamador troca de endereço. Sem ela, vale o primeiro endereço de
// X-Forwarded-For, depois X-Real-IP, depois o sentinela "unknown".
func ResolveIdentifier(meta domain.RequestMetadata, subjectID string) string {
	if id := strings.TrimSpace(subjectID); id != "" {
		return UserIdentifier(id)
	}
	return "ip:" + clientAddress(meta)
}

// UserIdentifier monta a chave de um usuário autenticado.
func UserIdentifier(subjectID string) string {
	return "user:" + subjectID
}

func clientAddress(meta domain.RequestMetadata) string {
	first, _, _ := strings.Cut(meta.ForwardedFor, ",")
	if ip := strings.TrimSpace(first); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(meta.RealIP); ip != "" {
		return ip
	}
	return unknownAddress
}
