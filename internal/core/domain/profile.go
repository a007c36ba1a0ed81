// Package domain concentra entidades e estruturas centrais do rate limiter.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// LimitType identifica a classe de operação a ser limitada.
type LimitType string

const (
	LimitAuth      LimitType = "auth"
	LimitSearch    LimitType = "search"
	LimitWrite     LimitType = "write"
	LimitFinancial LimitType = "financial"
	LimitRefund    LimitType = "refund"
	LimitCheckout  LimitType = "checkout"
	LimitCart      LimitType = "cart"
	LimitBooking   LimitType = "booking"
	LimitDefault   LimitType = "default"
)

// LimitProfile descreve a janela e o teto de requisições de um LimitType.
type LimitProfile struct {
	Name        LimitType
	Window      time.Duration
	MaxRequests int
	Message     string
}

// TTL devolve a janela arredondada para cima em segundos inteiros.
func (p LimitProfile) TTL() time.Duration {
	return (p.Window + time.Second - 1).Truncate(time.Second)
}

// DenyMessage monta a mensagem exibida ao chamador bloqueado.
func (p LimitProfile) DenyMessage(retryAfter int) string {
	return fmt.Sprintf("%s %d segundos.", p.Message, retryAfter)
}

var profiles = map[LimitType]LimitProfile{
	LimitAuth: {
		Name:        LimitAuth,
		Window:      time.Minute,
		MaxRequests: 5,
		Message:     "Demasiadas solicitudes. Intente de nuevo en",
	},
	LimitSearch: {
		Name:        LimitSearch,
		Window:      time.Minute,
		MaxRequests: 30,
		Message:     "Demasiadas búsquedas. Intente de nuevo en",
	},
	LimitWrite: {
		Name:        LimitWrite,
		Window:      time.Minute,
		MaxRequests: 20,
		Message:     "Demasiadas solicitudes. Intente de nuevo en",
	},
	LimitFinancial: {
		Name:        LimitFinancial,
		Window:      time.Minute,
		MaxRequests: 10,
		Message:     "Demasiadas operaciones financieras. Intente de nuevo en",
	},
	LimitRefund: {
		Name:        LimitRefund,
		Window:      time.Hour,
		MaxRequests: 5,
		Message:     "Límite de reembolsos alcanzado. Intente de nuevo en",
	},
	LimitCheckout: {
		Name:        LimitCheckout,
		Window:      time.Minute,
		MaxRequests: 5,
		Message:     "Demasiados intentos de pago. Intente de nuevo en",
	},
	LimitCart: {
		Name:        LimitCart,
		Window:      time.Minute,
		MaxRequests: 60,
		Message:     "Demasiadas operaciones de carrito. Intente de nuevo en",
	},
	LimitBooking: {
		Name:        LimitBooking,
		Window:      time.Hour,
		MaxRequests: 5,
		Message:     "Demasiadas solicitudes de reserva. Intente de nuevo en",
	},
	LimitDefault: {
		Name:        LimitDefault,
		Window:      time.Minute,
		MaxRequests: 60,
		Message:     "Demasiadas solicitudes. Intente de nuevo en",
	},
}

// ProfileFor devolve o perfil do tipo informado.
//
// O conjunto de tipos é fechado: um tipo desconhecido é erro de programação
// e provoca panic em vez de cair silenciosamente no perfil default.
func ProfileFor(lt LimitType) LimitProfile {
	p, ok := profiles[lt]
	if !ok {
		panic(fmt.Errorf("%w: %q", ErrUnknownLimitType, string(lt)))
	}
	return p
}

// ParseLimitType converte texto vindo de fronteiras (rotas, env) em LimitType.
func ParseLimitType(raw string) (LimitType, error) {
	lt := LimitType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := profiles[lt]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLimitType, raw)
	}
	return lt, nil
}

// LimitTypes lista todos os tipos conhecidos em ordem estável.
func LimitTypes() []LimitType {
	return []LimitType{
		LimitAuth,
		LimitSearch,
		LimitWrite,
		LimitFinancial,
		LimitRefund,
		LimitCheckout,
		LimitCart,
		LimitBooking,
		LimitDefault,
	}
}
