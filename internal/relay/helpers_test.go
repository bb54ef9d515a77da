package relay

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"tts-gateway/middleware/ratelimit/domain"
)

type fakeSynth struct {
	calls atomic.Int32
	audio []byte
	err   error
	delay time.Duration
	panic string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panic != "" {
		panic(f.panic)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.audio != nil {
		return f.audio, nil
	}
	return []byte("mp3:" + voice + ":" + text), nil
}

// countingLimiter conta as chamadas e delega (ou admite tudo).
type countingLimiter struct {
	calls atomic.Int32
	next  domain.Limiter
}

func (c *countingLimiter) Admit(client domain.ClientID, route string, now time.Time) domain.Decision {
	c.calls.Add(1)
	if c.next == nil {
		return domain.Allow()
	}
	return c.next.Admit(client, route, now)
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newFixedClock() *fixedClock {
	return &fixedClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
