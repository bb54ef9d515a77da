package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tts-gateway/internal/logger"
	"tts-gateway/internal/relay"
	"tts-gateway/internal/speech"
	"tts-gateway/internal/synthcache"
	"tts-gateway/middleware/ratelimit"
	"tts-gateway/middleware/ratelimit/application"
	"tts-gateway/middleware/ratelimit/domain"
	"tts-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// logger provisório até a configuração ser lida
	_ = logger.Init(logger.Config{})

	cfg, err := loadConfig(nil)
	if err != nil {
		logger.L.Fatalf("config error: %v", err)
	}
	if err := logger.Init(cfg.logConfig()); err != nil {
		logger.L.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger.Z); err != nil {
		cancel()
		logger.Z.Fatal("relay stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, log *zap.Logger) error {
	synth, err := speech.New(cfg.speechConfig(), log)
	if err != nil {
		return err
	}
	if u, ok := synth.(*speech.Unconfigured); ok {
		log.Warn("speech provider not configured, conversions will return 503",
			zap.String("provider", u.Provider),
			zap.Strings("missing", u.Missing),
		)
	}

	cache := synthcache.New(
		synthcache.WithTTL(cfg.CacheTTL),
		synthcache.WithMaxBytes(cfg.CacheMaxBytes),
		synthcache.WithShards(cfg.CacheShards),
		synthcache.WithSweepEvery(cfg.CacheSweepEvery),
		synthcache.WithComputeTimeout(cfg.SynthTimeout),
	)
	cache.StartJanitor(ctx)

	store, err := infra.NewWindowStore(cfg.rules, infra.WithCleanupEvery(cfg.RateCleanupEvery))
	if err != nil {
		return err
	}
	store.StartJanitor(ctx)

	memStats := infra.NewMemoryStatsStore(infra.WithTrackClients(cfg.RateStatsTrackClients))
	var stats domain.StatsStore = memStats
	if cfg.RateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateStatsRedisAddr,
			Password: cfg.RateStatsRedisPassword,
			DB:       cfg.RateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis stats ping: %w", err)
		}

		stats = infra.TeeStatsStore{memStats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.RateStatsPrefix),
			infra.WithStatsRetention(cfg.RateStatsTTL),
			infra.WithStatsSeries(cfg.RateStatsBucket),
			infra.WithStatsPerClient(cfg.RateStatsTrackClients),
		)}
	}

	statsLog := log.Named("ratelimit")
	admission := application.Service{
		Stats:            stats,
		DenyUnidentified: cfg.RateDenyMissingClientID,
		OnStatsError: func(err error) {
			statsLog.Debug("stats record failed", zap.Error(err))
		},
	}
	if cfg.RateEnabled {
		admission.Limiter = store
	}

	pipeline := relay.NewPipeline(relay.PipelineConfig{
		Validator: relay.Validator{
			MaxTextLength: cfg.MaxTextLength,
			DefaultVoice:  cfg.DefaultVoice,
			Voices:        cfg.Voices,
		},
		Admission: admission,
		Cache:     cache,
		Synth:     synth,
		Logger:    log.Named("pipeline"),
	})

	handler := relay.NewServer(relay.Config{
		Pipeline:            pipeline,
		Admission:           admission,
		KeyFn:               ratelimit.DefaultKeyFunc(cfg.identity()),
		AddRateLimitHeaders: cfg.AddRateLimitHeaders,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.ConcurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.ConcurrencyTimeout,
			SlowAcquire:    time.Second,
		},
		RateStats: memStats,
		Provider:  cfg.SynthProvider,
		StaticDir: cfg.StaticDir,
		Logger:    log.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a escrita precisa cobrir a síntese mais lenta
		WriteTimeout: cfg.SynthTimeout + 15*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("relay listening",
		zap.String("addr", srv.Addr),
		zap.String("provider", cfg.SynthProvider),
		zap.Bool("upstream_configured", speech.Configured(synth)),
		zap.String("static_dir", cfg.StaticDir),
	)
	log.Info("rate limit",
		zap.Bool("enabled", cfg.RateEnabled),
		zap.Int("rules", len(cfg.rules)),
		zap.String("client_id_source", cfg.RateClientIDSource),
		zap.String("client_id_header", cfg.RateClientIDHeader),
		zap.Bool("trust_xff", cfg.TrustXFF),
		zap.Bool("deny_missing_client_id", cfg.RateDenyMissingClientID),
	)
	for _, r := range store.Rules() {
		log.Debug("rate rule", zap.String("route", r.Route), zap.Duration("window", r.Window), zap.Int("max", r.Max))
	}
	log.Info("cache",
		zap.Duration("ttl", cfg.CacheTTL),
		zap.Int64("max_bytes", cfg.CacheMaxBytes),
		zap.Int("shards", cfg.CacheShards),
	)
	log.Info("rate stats",
		zap.Bool("redis", cfg.RateStatsEnabled),
		zap.String("redis_addr", cfg.RateStatsRedisAddr),
		zap.String("bucket", cfg.RateStatsBucket),
	)
	log.Info("concurrency", zap.Int("max", cfg.ConcurrencyMax), zap.Duration("acquire_timeout", cfg.ConcurrencyTimeout))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("relay stopped")
	return nil
}
