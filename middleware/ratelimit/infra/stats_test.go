package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"tts-gateway/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStatsStore_CountsByRouteAndRule(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackClients(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Client: "A", Allowed: true, Route: "POST /convert"})
	_ = s.Record(ctx, domain.StatsEvent{Client: "A", Allowed: false, Route: "POST /convert", Rule: "POST /convert"})
	_ = s.Record(ctx, domain.StatsEvent{Client: "B", Allowed: false, Route: "GET /api/tts/voices", Rule: "*"})

	snap := s.Snapshot()
	if snap.Total.Allowed != 1 || snap.Total.Denied != 2 {
		t.Fatalf("unexpected totals: %+v", snap.Total)
	}
	if got := snap.ByRoute["POST /convert"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected convert counters: %+v", got)
	}
	if snap.DeniedByRule["*"] != 1 || snap.DeniedByRule["POST /convert"] != 1 {
		t.Fatalf("unexpected per-rule denials: %+v", snap.DeniedByRule)
	}
	if got := s.ByClient()["A"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected client counters: %+v", got)
	}
}

func TestMemoryStatsStore_DoesNotTrackClientsByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Client: "A", Allowed: true, Route: "x"})
	if len(s.ByClient()) != 0 {
		t.Fatalf("expected no per-client counters")
	}
}

func TestRedisStatsStore_WritesHashes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	s := NewRedisStatsStore(rdb,
		WithStatsPrefix("stats:"),
		WithStatsRetention(time.Hour),
		WithStatsPerClient(true),
	)

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	ctx := context.Background()
	if err := s.Record(ctx, domain.StatsEvent{Client: "A", Allowed: true, Route: "POST /convert", At: at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	denied := domain.StatsEvent{Client: "A", Route: "POST /convert", Rule: "*", Reason: domain.ReasonRateLimited, At: at}
	if err := s.Record(ctx, denied); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := map[string][2]string{
		"decisions allowed":  {"stats:decisions", "allowed"},
		"route denied":       {"stats:route:POST /convert", "denied"},
		"rule denial":        {"stats:denied:rule", "*"},
		"reason denial":      {"stats:denied:reason", "rate_limited"},
		"minute series":      {"stats:series:202405060708", "denied"},
		"per-client allowed": {"stats:client:A", "allowed"},
	}
	for name, kf := range checks {
		if got := mr.HGet(kf[0], kf[1]); got != "1" {
			t.Fatalf("%s: expected %s[%s]=1, got %q", name, kf[0], kf[1], got)
		}
	}
	if ttl := mr.TTL("stats:client:A"); ttl != time.Hour {
		t.Fatalf("expected client key retention=1h, got %s", ttl)
	}
	if ttl := mr.TTL("stats:decisions"); ttl != 0 {
		t.Fatalf("expected cumulative key without ttl, got %s", ttl)
	}
}

func TestRedisStatsStore_HourSeriesAndNoClients(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	s := NewRedisStatsStore(rdb, WithStatsPrefix("s"), WithStatsSeries(SeriesHour))
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	if err := s.Record(context.Background(), domain.StatsEvent{Client: "A", Allowed: true, At: at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mr.HGet("s:series:2024050607", "allowed"); got != "1" {
		t.Fatalf("expected hour series allowed=1, got %q", got)
	}
	if mr.Exists("s:client:A") {
		t.Fatalf("per-client hash written without WithStatsPerClient")
	}
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	if err := s.Record(context.Background(), domain.StatsEvent{}); err != nil {
		t.Fatalf("expected nil store to be a no-op, got %v", err)
	}
}

type failingStats struct{ err error }

func (f failingStats) Record(context.Context, domain.StatsEvent) error { return f.err }

func TestTeeStatsStore_RecordsEverywhere(t *testing.T) {
	mem := NewMemoryStatsStore()
	boom := errors.New("redis down")
	tee := TeeStatsStore{failingStats{err: boom}, nil, mem}

	err := tee.Record(context.Background(), domain.StatsEvent{Client: "a", Allowed: true, Route: "POST /convert"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if got := mem.Total().Allowed; got != 1 {
		t.Fatalf("memory store should still record, allowed=%d", got)
	}
}
