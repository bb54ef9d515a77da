package infra

import (
	"context"
	"strings"
	"time"

	"tts-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// Série temporal das decisões.
const (
	SeriesMinute = "minute"
	SeriesHour   = "hour"
	SeriesNone   = "none"
)

// RedisStatsStore espelha o MemoryStatsStore em hashes do Redis, para que
// várias réplicas somem no mesmo lugar:
//
//	<prefix>:decisions            allowed|denied
//	<prefix>:route:<rota>         allowed|denied
//	<prefix>:denied:rule          <regra> -> negações
//	<prefix>:denied:reason        rate_limited|unidentified
//	<prefix>:series:<janela>      allowed|denied   (expira)
//	<prefix>:client:<id>          allowed|denied   (expira, opcional)
type RedisStatsStore struct {
	rdb    redis.Cmdable
	prefix string

	series    string
	retention time.Duration
	perClient bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsRetention define por quanto tempo a série e os hashes por
// cliente ficam no Redis. Zero mantém para sempre.
func WithStatsRetention(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.retention = d }
}

func WithStatsSeries(series string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.series = strings.ToLower(strings.TrimSpace(series)) }
}

func WithStatsPerClient(on bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.perClient = on }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:       rdb,
		prefix:    "tts:ratelimit:stats",
		series:    SeriesMinute,
		retention: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func seriesLayout(series string) string {
	switch series {
	case SeriesMinute:
		return "200601021504"
	case SeriesHour:
		return "2006010215"
	}
	return ""
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":decisions", outcome, 1)

	if route := strings.TrimSpace(ev.Route); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route:"+route, outcome, 1)
	}
	if !ev.Allowed {
		if ev.Rule != "" {
			pipe.HIncrBy(ctx, s.prefix+":denied:rule", ev.Rule, 1)
		}
		if ev.Reason != domain.ReasonNone {
			pipe.HIncrBy(ctx, s.prefix+":denied:reason", string(ev.Reason), 1)
		}
	}

	if layout := seriesLayout(s.series); layout != "" {
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		s.incrExpiring(ctx, pipe, s.prefix+":series:"+at.UTC().Format(layout), outcome)
	}

	if s.perClient {
		if c := strings.TrimSpace(string(ev.Client)); c != "" {
			s.incrExpiring(ctx, pipe, s.prefix+":client:"+c, outcome)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.retention > 0 {
		pipe.Expire(ctx, key, s.retention)
	}
}
