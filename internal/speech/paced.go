package speech

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Paced limita o ritmo (token bucket) e o número de chamadas simultâneas
// ao provedor, para não estourar a cota dele.
type Paced struct {
	next Synthesizer
	lim  *rate.Limiter
	sem  *semaphore.Weighted
}

// NewPaced embrulha next. rps <= 0 desliga o ritmo; maxConcurrent <= 0
// desliga o limite de concorrência.
func NewPaced(next Synthesizer, rps float64, burst int, maxConcurrent int64) *Paced {
	p := &Paced{next: next}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		p.lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if maxConcurrent > 0 {
		p.sem = semaphore.NewWeighted(maxConcurrent)
	}
	return p
}

func (p *Paced) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, unavailableErr("waiting for provider slot", err)
		}
		defer p.sem.Release(1)
	}
	if p.lim != nil {
		if err := p.lim.Wait(ctx); err != nil {
			return nil, unavailableErr("waiting for provider rate", err)
		}
	}
	return p.next.Synthesize(ctx, text, voice)
}
