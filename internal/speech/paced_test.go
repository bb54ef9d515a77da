package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type slowSynth struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (s *slowSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	return []byte(text), nil
}

func TestPaced_CapsConcurrency(t *testing.T) {
	inner := &slowSynth{delay: 20 * time.Millisecond}
	p := NewPaced(inner, 0, 0, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Synthesize(context.Background(), "x", "v"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := inner.peak.Load(); got > 2 {
		t.Fatalf("expected at most 2 concurrent calls, saw %d", got)
	}
}

func TestPaced_WaitHonoursContext(t *testing.T) {
	inner := &slowSynth{}
	// 1 chamada a cada 10s, burst 1: a segunda precisa esperar
	p := NewPaced(inner, 0.1, 1, 0)

	if _, err := p.Synthesize(context.Background(), "x", "v"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Synthesize(ctx, "x", "v")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
