package infra

import (
	"sync"
	"time"

	"tts-gateway/middleware/ratelimit/domain"
)

// WindowStore é um limiter de janela fixa por (cliente, regra), em memória,
// com limpeza periódica de contadores ociosos.
//
// Todas as regras que casam com a rota precisam admitir a requisição.
// Numa negação nenhum contador é incrementado: a contagem representa apenas
// requisições efetivamente admitidas.
type WindowStore struct {
	mu           sync.Mutex
	rules        []domain.Rule
	counters     map[counterKey]*windowCounter
	cleanupEvery time.Duration
	now          func() time.Time
}

type counterKey struct {
	client domain.ClientID
	rule   string
}

type windowCounter struct {
	windowStart time.Time
	count       int
	window      time.Duration
}

type WindowStoreOption func(*WindowStore)

func WithCleanupEvery(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

// WithClock troca a fonte de tempo usada pelo janitor (útil em testes).
func WithClock(now func() time.Time) WindowStoreOption {
	return func(s *WindowStore) { s.now = now }
}

// NewWindowStore valida as regras e devolve o store. Regras inválidas são
// erro de configuração.
func NewWindowStore(rules []domain.Rule, opts ...WindowStoreOption) (*WindowStore, error) {
	if err := domain.ValidateRules(rules); err != nil {
		return nil, err
	}
	s := &WindowStore{
		rules:        domain.OrderRules(rules),
		counters:     make(map[counterKey]*windowCounter),
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *WindowStore) Rules() []domain.Rule {
	out := make([]domain.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

func (s *WindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Admit implementa domain.Limiter.
func (s *WindowStore) Admit(client domain.ClientID, route string, now time.Time) domain.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.Rule
	for _, r := range s.rules {
		if !r.Matches(route) {
			continue
		}
		matched = append(matched, r)

		c, ok := s.counters[counterKey{client: client, rule: r.Route}]
		if !ok {
			continue
		}
		elapsed := now.Sub(c.windowStart)
		if elapsed >= r.Window {
			// janela vencida: a reinicialização só acontece se a requisição for admitida
			continue
		}
		if c.count >= r.Max {
			return domain.Deny(r.Route, r.Window-elapsed)
		}
	}

	for _, r := range matched {
		k := counterKey{client: client, rule: r.Route}
		c, ok := s.counters[k]
		if !ok {
			c = &windowCounter{windowStart: now, window: r.Window}
			s.counters[k] = c
		} else if now.Sub(c.windowStart) >= r.Window {
			c.windowStart = now
			c.count = 0
		}
		c.count++
	}
	return domain.Allow()
}

// Len devolve o número de contadores vivos.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Cleanup remove contadores cuja janela já terminou.
func (s *WindowStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, c := range s.counters {
		if now.Sub(c.windowStart) >= c.window {
			delete(s.counters, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa contadores ociosos periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

func startJanitor(ctx DoneContext, every time.Duration, fn func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}
