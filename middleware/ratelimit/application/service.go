package application

import (
	"context"
	"time"

	"tts-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Limiter domain.Limiter
	Stats   domain.StatsStore
	// DenyUnidentified nega requisições sem identidade de cliente. Quando
	// false, elas são contadas juntas sob domain.UnknownClient.
	DenyUnidentified bool
	// OnStatsError recebe falhas de gravação de estatística (best-effort).
	OnStatsError func(error)
	Now          func() time.Time
}

// Decide avalia a requisição do cliente para a rota lógica e registra o
// evento de estatística.
func (s Service) Decide(ctx context.Context, client domain.ClientID, route string) domain.Decision {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now()

	dec := s.decide(client, route, at)
	if s.Stats != nil {
		if client == "" {
			client = domain.UnknownClient
		}
		err := s.Stats.Record(ctx, domain.StatsEvent{
			Client:  client,
			Allowed: dec.Allowed,
			Reason:  dec.Reason,
			Rule:    dec.Rule,
			Route:   route,
			At:      at,
		})
		if err != nil && s.OnStatsError != nil {
			s.OnStatsError(err)
		}
	}
	return dec
}

func (s Service) decide(client domain.ClientID, route string, at time.Time) domain.Decision {
	if client == "" {
		if s.DenyUnidentified {
			return domain.Decision{Reason: domain.ReasonUnidentified}
		}
		client = domain.UnknownClient
	}
	if s.Limiter == nil {
		return domain.Allow()
	}
	return s.Limiter.Admit(client, route, at)
}
