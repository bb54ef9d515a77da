package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// ClientID identifica o cliente (header, IP real ou endereço da conexão).
// Vazio significa que não foi possível identificar o cliente.
type ClientID string

// UnknownClient é a identidade compartilhada usada quando a política permite
// clientes não identificados.
const UnknownClient ClientID = "unknown"

// Reason explica por que uma requisição foi negada.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonRateLimited  Reason = "rate_limited"
	ReasonUnidentified Reason = "unidentified"
)

// Limiter decide se uma requisição do cliente para a rota é admitida em `now`.
//
// A implementação deve ser segura para uso concorrente e não pode bloquear.
type Limiter interface {
	Admit(client ClientID, route string, now time.Time) Decision
}

type Decision struct {
	Allowed bool
	Reason  Reason
	// Rule é a rota da regra que negou (a primeira na ordem de avaliação).
	Rule string
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(rule string, retryAfter time.Duration) Decision {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{Reason: ReasonRateLimited, Rule: rule, RetryAfter: retryAfter}
}
