package infra

import (
	"context"
	"sync"

	"tts-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore guarda as decisões em memória, por rota, por regra que
// negou e (opcionalmente) por cliente.
//
// Não faz expiração; com trackClients ligado a cardinalidade cresce com o
// número de clientes.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byRoute  map[string]Counters
	byRule   map[string]int64
	byClient map[domain.ClientID]Counters

	trackClients bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackClients(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackClients = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute:  make(map[string]Counters),
		byRule:   make(map[string]int64),
		byClient: make(map[domain.ClientID]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	c := s.byRoute[ev.Route]
	c.add(ev.Allowed)
	s.byRoute[ev.Route] = c

	if !ev.Allowed && ev.Rule != "" {
		s.byRule[ev.Rule]++
	}

	if s.trackClients {
		k := s.byClient[ev.Client]
		k.add(ev.Allowed)
		s.byClient[ev.Client] = k
	}
	return nil
}

// Snapshot é a visão serializável do store.
type Snapshot struct {
	Total   Counters            `json:"total"`
	ByRoute map[string]Counters `json:"by_route"`
	// DeniedByRule conta negações pela regra responsável.
	DeniedByRule map[string]int64 `json:"denied_by_rule"`
}

func (s *MemoryStatsStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Total:        s.total,
		ByRoute:      make(map[string]Counters, len(s.byRoute)),
		DeniedByRule: make(map[string]int64, len(s.byRule)),
	}
	for k, v := range s.byRoute {
		out.ByRoute[k] = v
	}
	for k, v := range s.byRule {
		out.DeniedByRule[k] = v
	}
	return out
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByClient() map[domain.ClientID]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.ClientID]Counters, len(s.byClient))
	for k, v := range s.byClient {
		out[k] = v
	}
	return out
}
