package application

import (
	"context"
	"errors"
	"time"

	"tts-gateway/middleware/ratelimit/domain"
)

// ErrNoSlot indica que o timeout de aquisição expirou sem vaga livre.
var ErrNoSlot = errors.New("no concurrency slot available")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga e informa quanto tempo esperou.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout e devolve ErrNoSlot.
//
// Se o próprio ctx do chamador encerrar, o erro é ctx.Err() (cliente desistiu,
// não é falta de capacidade).
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), waited time.Duration, err error) {
	if s.Pool == nil {
		return func() {}, 0, nil
	}

	start := time.Now()
	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	waited = time.Since(start)
	if ok {
		return release, waited, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, waited, err
	}
	return nil, waited, ErrNoSlot
}
