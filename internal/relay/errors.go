package relay

import (
	"errors"
	"fmt"

	"tts-gateway/middleware/ratelimit/domain"
)

// ErrValidation marca entradas inválidas do cliente (texto vazio, longo
// demais, voz fora da lista).
var ErrValidation = errors.New("invalid request")

// DeniedError é devolvido quando o rate limit barra a conversão.
type DeniedError struct {
	Decision domain.Decision
}

func (e *DeniedError) Error() string {
	if e.Decision.Reason == domain.ReasonUnidentified {
		return "client identity unavailable"
	}
	return fmt.Sprintf("rate limit exceeded by rule %q, retry after %s", e.Decision.Rule, e.Decision.RetryAfter)
}
