package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"tts-gateway/middleware/ratelimit/domain"
)

type fakeLimiter struct {
	dec    domain.Decision
	calls  int
	client domain.ClientID
	route  string
	at     time.Time
}

func (f *fakeLimiter) Admit(client domain.ClientID, route string, now time.Time) domain.Decision {
	f.calls++
	f.client, f.route, f.at = client, route, now
	return f.dec
}

type recordingStats struct {
	events []domain.StatsEvent
	err    error
}

func (r *recordingStats) Record(_ context.Context, ev domain.StatsEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestService_Decide_AllowsWhenNoLimiter(t *testing.T) {
	svc := Service{}
	dec := svc.Decide(context.Background(), "k", "POST /convert")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_PassesClientRouteAndClock(t *testing.T) {
	lim := &fakeLimiter{dec: domain.Allow()}
	svc := Service{Limiter: lim, Now: func() time.Time { return fixedNow }}

	svc.Decide(context.Background(), "10.0.0.1", "POST /convert")
	if lim.client != "10.0.0.1" || lim.route != "POST /convert" || !lim.at.Equal(fixedNow) {
		t.Fatalf("unexpected limiter args: %q %q %s", lim.client, lim.route, lim.at)
	}
}

func TestService_Decide_ReturnsLimiterDenial(t *testing.T) {
	lim := &fakeLimiter{dec: domain.Deny("POST /convert", 50*time.Second)}
	svc := Service{Limiter: lim}

	dec := svc.Decide(context.Background(), "k", "POST /convert")
	if dec.Allowed || dec.RetryAfter != 50*time.Second || dec.Rule != "POST /convert" {
		t.Fatalf("unexpected decision: %+v", dec)
	}
}

func TestService_Decide_UnidentifiedSharesUnknownBucket(t *testing.T) {
	lim := &fakeLimiter{dec: domain.Allow()}
	svc := Service{Limiter: lim}

	if dec := svc.Decide(context.Background(), "", "POST /convert"); !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if lim.client != domain.UnknownClient {
		t.Fatalf("expected unknown client bucket, got %q", lim.client)
	}
}

func TestService_Decide_DenyUnidentifiedSkipsLimiter(t *testing.T) {
	lim := &fakeLimiter{dec: domain.Allow()}
	svc := Service{Limiter: lim, DenyUnidentified: true}

	dec := svc.Decide(context.Background(), "", "POST /convert")
	if dec.Allowed || dec.Reason != domain.ReasonUnidentified {
		t.Fatalf("expected unidentified denial, got %+v", dec)
	}
	if lim.calls != 0 {
		t.Fatalf("expected limiter untouched, got %d calls", lim.calls)
	}
}

func TestService_Decide_RecordsStatsBestEffort(t *testing.T) {
	stats := &recordingStats{err: errors.New("redis down")}
	var reported error
	svc := Service{
		Limiter:      &fakeLimiter{dec: domain.Deny("*", time.Minute)},
		Stats:        stats,
		OnStatsError: func(err error) { reported = err },
		Now:          func() time.Time { return fixedNow },
	}

	dec := svc.Decide(context.Background(), "A", "GET /api/tts/voices")
	if dec.Allowed {
		t.Fatalf("expected denial to survive stats failure")
	}
	if len(stats.events) != 1 {
		t.Fatalf("expected one stats event, got %d", len(stats.events))
	}
	ev := stats.events[0]
	if ev.Client != "A" || ev.Allowed || ev.Rule != "*" || ev.Route != "GET /api/tts/voices" || !ev.At.Equal(fixedNow) {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if reported == nil {
		t.Fatalf("expected stats error to be reported")
	}
}
