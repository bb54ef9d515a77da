// Package synthcache memoriza áudios sintetizados por impressão digital
// (voz, texto), com expiração por TTL, orçamento de bytes com despejo LRU e
// coalescência de requisições concorrentes idênticas numa única chamada ao
// provedor.
package synthcache

import (
	"bytes"
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// ErrComputePanic envolve um panic ocorrido na função de cálculo.
var ErrComputePanic = errors.New("synthesis compute panicked")

// Lookup diz como o chamador obteve o resultado.
type Lookup int

const (
	Hit Lookup = iota
	MissLeader
	MissWaiter
)

func (l Lookup) String() string {
	switch l {
	case Hit:
		return "HIT"
	case MissLeader:
		return "MISS"
	case MissWaiter:
		return "COALESCED"
	default:
		return "UNKNOWN"
	}
}

// ComputeFunc faz a chamada cara ao provedor. O ctx recebido não é
// cancelado quando o chamador que a disparou desiste.
type ComputeFunc func(ctx context.Context) ([]byte, error)

type Cache struct {
	shards []*shard
	group  singleflight.Group

	ttl            time.Duration
	maxBytes       int64
	computeTimeout time.Duration
	sweepEvery     time.Duration
	now            func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
	failures  atomic.Int64
	evictions atomic.Int64
}

type shard struct {
	mu       sync.Mutex
	items    map[Key]*list.Element
	lru      *list.List
	size     int64
	capacity int64 // 0 = sem limite
}

type entry struct {
	key       Key
	audio     []byte
	createdAt time.Time
	expiresAt time.Time
}

type Option func(*Cache)

func WithTTL(d time.Duration) Option { return func(c *Cache) { c.ttl = d } }

// WithMaxBytes limita o total de bytes de áudio guardados; 0 desliga o limite.
func WithMaxBytes(n int64) Option { return func(c *Cache) { c.maxBytes = n } }

func WithShards(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.shards = make([]*shard, n)
		}
	}
}

// WithComputeTimeout limita cada chamada ao provedor.
func WithComputeTimeout(d time.Duration) Option { return func(c *Cache) { c.computeTimeout = d } }

func WithSweepEvery(d time.Duration) Option { return func(c *Cache) { c.sweepEvery = d } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func New(opts ...Option) *Cache {
	c := &Cache{
		shards:     make([]*shard, 16),
		ttl:        time.Hour,
		maxBytes:   64 << 20,
		sweepEvery: 5 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ttl <= 0 {
		c.ttl = time.Hour
	}

	var perShard int64
	if c.maxBytes > 0 {
		perShard = c.maxBytes / int64(len(c.shards))
		if perShard < 1 {
			perShard = 1
		}
	}
	for i := range c.shards {
		c.shards[i] = &shard{
			items:    make(map[Key]*list.Element),
			lru:      list.New(),
			capacity: perShard,
		}
	}
	return c
}

func (c *Cache) TTL() time.Duration { return c.ttl }

type computed struct {
	audio  []byte
	cached bool
}

// GetOrCompute devolve o áudio da chave, calculando-o com fn numa falta.
//
// Chamadas concorrentes para a mesma chave compartilham uma única execução
// de fn e recebem o mesmo resultado (ou o mesmo erro). Erros não ficam em
// cache. Se ctx encerrar durante a espera, o chamador recebe ctx.Err() e a
// execução em andamento continua, populando o cache para os demais.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, fn ComputeFunc) ([]byte, Lookup, error) {
	if audio, ok := c.get(key); ok {
		c.hits.Add(1)
		return audio, Hit, nil
	}

	led := false
	ch := c.group.DoChan(string(key), func() (any, error) {
		led = true
		// o líder anterior pode ter terminado entre o get acima e o DoChan
		if audio, ok := c.peek(key); ok {
			return computed{audio: audio, cached: true}, nil
		}
		c.misses.Add(1)
		return c.compute(ctx, key, fn)
	})

	select {
	case res := <-ch:
		lookup := MissWaiter
		switch {
		case res.Err == nil && res.Val.(computed).cached:
			lookup = Hit
			c.hits.Add(1)
		case led:
			lookup = MissLeader
		default:
			c.coalesced.Add(1)
		}
		if res.Err != nil {
			return nil, lookup, res.Err
		}
		return bytes.Clone(res.Val.(computed).audio), lookup, nil
	case <-ctx.Done():
		return nil, MissWaiter, ctx.Err()
	}
}

func (c *Cache) compute(ctx context.Context, key Key, fn ComputeFunc) (res computed, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrComputePanic, r)
		}
		if err != nil {
			c.failures.Add(1)
		}
	}()

	callCtx := context.WithoutCancel(ctx)
	if c.computeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, c.computeTimeout)
		defer cancel()
	}

	audio, err := fn(callCtx)
	if err != nil {
		return computed{}, err
	}
	c.set(key, audio)
	return computed{audio: audio}, nil
}

func (c *Cache) shardFor(key Key) *shard {
	return c.shards[xxhash.Sum64String(string(key))%uint64(len(c.shards))]
}

// get devolve uma cópia do áudio e promove a entrada no LRU.
func (c *Cache) get(key Key) ([]byte, bool) {
	s := c.shardFor(key)
	now := c.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !now.Before(e.expiresAt) {
		s.remove(el)
		return nil, false
	}
	s.lru.MoveToFront(el)
	return bytes.Clone(e.audio), true
}

// peek é o get sem cópia, usado só dentro do singleflight.
func (c *Cache) peek(key Key) ([]byte, bool) {
	s := c.shardFor(key)
	now := c.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok || !now.Before(el.Value.(*entry).expiresAt) {
		return nil, false
	}
	return el.Value.(*entry).audio, true
}

func (c *Cache) set(key Key, audio []byte) {
	s := c.shardFor(key)
	now := c.now()
	size := int64(len(audio))

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.remove(el)
	}
	if s.capacity > 0 && size > s.capacity {
		// maior que o orçamento do shard: entregue, mas não guardado
		return
	}
	for s.capacity > 0 && s.size+size > s.capacity && s.lru.Len() > 0 {
		s.remove(s.lru.Back())
		c.evictions.Add(1)
	}

	el := s.lru.PushFront(&entry{
		key:       key,
		audio:     audio,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	})
	s.items[key] = el
	s.size += size
}

func (s *shard) remove(el *list.Element) {
	e := el.Value.(*entry)
	s.lru.Remove(el)
	delete(s.items, e.key)
	s.size -= int64(len(e.audio))
}

// Sweep remove as entradas expiradas e devolve quantas saíram.
func (c *Cache) Sweep() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for el := s.lru.Back(); el != nil; {
			prev := el.Prev()
			if !now.Before(el.Value.(*entry).expiresAt) {
				s.remove(el)
				removed++
			}
			el = prev
		}
		s.mu.Unlock()
	}
	return removed
}

// StartJanitor varre entradas expiradas periodicamente. Pare cancelando o contexto.
func (c *Cache) StartJanitor(ctx context.Context) {
	if c.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(c.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Sweep()
			}
		}
	}()
}

type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Coalesced int64 `json:"coalesced"`
	Failures  int64 `json:"failures"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
	Bytes     int64 `json:"bytes"`
}

func (c *Cache) Stats() Stats {
	st := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
		Failures:  c.failures.Load(),
		Evictions: c.evictions.Load(),
	}
	for _, s := range c.shards {
		s.mu.Lock()
		st.Entries += len(s.items)
		st.Bytes += s.size
		s.mu.Unlock()
	}
	return st
}
