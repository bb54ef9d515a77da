package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Route é a rota lógica avaliada (ex.: "POST /convert"), não o path bruto,
// para manter a cardinalidade sob controle em Redis.
type StatsEvent struct {
	Client  ClientID
	Allowed bool
	Reason  Reason
	Rule    string

	Route string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// O chamador trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
