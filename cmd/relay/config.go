package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"tts-gateway/internal/logger"
	"tts-gateway/internal/speech"
	"tts-gateway/middleware/ratelimit"
	"tts-gateway/middleware/ratelimit/domain"
	"tts-gateway/middleware/ratelimit/infra"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type config struct {
	ListenAddr string `env:"LISTEN_ADDR"`
	Port       string `env:"PORT"`
	StaticDir  string `env:"STATIC_DIR"`

	LogLevel      string `env:"LOG_LEVEL"        envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT"       envDefault:"console"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB"  envDefault:"64"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS"  envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"7"`

	SynthProvider      string        `env:"SYNTH_PROVIDER"       envDefault:"watson"`
	SynthURL           string        `env:"SYNTH_URL"`
	SynthAPIKey        string        `env:"SYNTH_API_KEY"`
	TencentSecretID    string        `env:"TENCENT_SECRET_ID"`
	TencentSecretKey   string        `env:"TENCENT_SECRET_KEY"`
	TencentRegion      string        `env:"TENCENT_REGION"       envDefault:"ap-guangzhou"`
	SynthTimeout       time.Duration `env:"SYNTH_TIMEOUT"        envDefault:"30s"`
	SynthRPS           float64       `env:"SYNTH_RPS"            envDefault:"0"`
	SynthBurst         int           `env:"SYNTH_BURST"          envDefault:"1"`
	SynthMaxConcurrent int64         `env:"SYNTH_MAX_CONCURRENT" envDefault:"8"`

	DefaultVoice  string   `env:"DEFAULT_VOICE"   envDefault:"en-US_AllisonV3Voice"`
	Voices        []string `env:"VOICES"          envSeparator:","`
	MaxTextLength int      `env:"MAX_TEXT_LENGTH" envDefault:"1000"`

	CacheTTL        time.Duration `env:"CACHE_TTL"         envDefault:"1h"`
	CacheMaxBytes   int64         `env:"CACHE_MAX_BYTES"   envDefault:"67108864"`
	CacheShards     int           `env:"CACHE_SHARDS"      envDefault:"16"`
	CacheSweepEvery time.Duration `env:"CACHE_SWEEP_EVERY" envDefault:"5m"`

	RateEnabled             bool          `env:"RATE_ENABLED"                envDefault:"true"`
	RateRulesFile           string        `env:"RATE_RULES_FILE"`
	// header só atrás de um proxy que sobrescreve o X-ClientId.
	RateClientIDSource      string        `env:"RATE_CLIENT_ID_SOURCE"       envDefault:"remote"`
	RateClientIDHeader      string        `env:"RATE_CLIENT_ID_HEADER"       envDefault:"X-ClientId"`
	RateRealIPHeader        string        `env:"RATE_REAL_IP_HEADER"         envDefault:"X-Real-IP"`
	TrustXFF                bool          `env:"TRUST_XFF"                   envDefault:"false"`
	RateDenyMissingClientID bool          `env:"RATE_DENY_MISSING_CLIENT_ID" envDefault:"false"`
	AddRateLimitHeaders     bool          `env:"ADD_RATELIMIT_HEADERS"       envDefault:"false"`
	RateCleanupEvery        time.Duration `env:"RATE_CLEANUP_EVERY"          envDefault:"2m"`

	ConcurrencyMax     int           `env:"CONCURRENCY_MAX"     envDefault:"100"`
	ConcurrencyTimeout time.Duration `env:"CONCURRENCY_TIMEOUT" envDefault:"0"`

	RateStatsEnabled       bool          `env:"RATE_STATS_ENABLED"        envDefault:"false"`
	RateStatsRedisAddr     string        `env:"RATE_STATS_REDIS_ADDR"`
	RateStatsRedisPassword string        `env:"RATE_STATS_REDIS_PASSWORD"`
	RateStatsRedisDB       int           `env:"RATE_STATS_REDIS_DB"       envDefault:"0"`
	RateStatsPrefix        string        `env:"RATE_STATS_PREFIX"         envDefault:"tts:ratelimit:stats"`
	RateStatsTTL           time.Duration `env:"RATE_STATS_TTL"            envDefault:"24h"`
	RateStatsBucket        string        `env:"RATE_STATS_BUCKET"         envDefault:"minute"`
	RateStatsTrackClients  bool          `env:"RATE_STATS_TRACK_CLIENTS"  envDefault:"false"`

	// rules vem de RATE_RULES_FILE ou de domain.DefaultRules.
	rules []domain.Rule
}

// loadConfig lê o ambiente (environ nil = ambiente do processo), carrega as
// regras e valida tudo. Qualquer erro aqui é fatal no startup.
func loadConfig(environ map[string]string) (config, error) {
	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return config{}, err
	}

	getenv := os.Getenv
	if environ != nil {
		getenv = func(k string) string { return environ[k] }
	}

	cfg.rules = domain.DefaultRules()
	if cfg.RateRulesFile != "" {
		rules, err := loadRules(cfg.RateRulesFile, getenv)
		if err != nil {
			return config{}, err
		}
		cfg.rules = rules
	}

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

type rulesFile struct {
	Rules []struct {
		Route  string        `yaml:"route"`
		Window time.Duration `yaml:"window"`
		Max    int           `yaml:"max"`
	} `yaml:"rules"`
}

// loadRules lê o YAML de regras, expandindo ${VAR} antes do parse.
func loadRules(path string, getenv func(string) string) ([]domain.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	expanded := os.Expand(string(data), getenv)

	var f rulesFile
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	rules := make([]domain.Rule, 0, len(f.Rules))
	for _, r := range f.Rules {
		rules = append(rules, domain.Rule{Route: strings.TrimSpace(r.Route), Window: r.Window, Max: r.Max})
	}
	if err := domain.ValidateRules(rules); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

func (c config) validate() error {
	var errs []error

	switch c.SynthProvider {
	case speech.ProviderWatson, speech.ProviderEdge, speech.ProviderTencent:
	default:
		errs = append(errs, fmt.Errorf("SYNTH_PROVIDER must be watson, edge or tencent, got %q", c.SynthProvider))
	}
	switch ratelimit.ClientIDSource(c.RateClientIDSource) {
	case ratelimit.SourceHeader, ratelimit.SourceRemoteAddr:
	default:
		errs = append(errs, fmt.Errorf("RATE_CLIENT_ID_SOURCE must be header or remote, got %q", c.RateClientIDSource))
	}

	if c.SynthTimeout <= 0 {
		errs = append(errs, errors.New("SYNTH_TIMEOUT must be > 0"))
	}
	if c.SynthRPS > 0 && c.SynthBurst <= 0 {
		errs = append(errs, errors.New("SYNTH_BURST must be > 0 when SYNTH_RPS is set"))
	}
	if c.MaxTextLength <= 0 {
		errs = append(errs, errors.New("MAX_TEXT_LENGTH must be > 0"))
	}
	if len(c.Voices) > 0 && !slices.Contains(c.Voices, c.DefaultVoice) {
		errs = append(errs, fmt.Errorf("DEFAULT_VOICE %q is not listed in VOICES", c.DefaultVoice))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be > 0"))
	}
	if c.CacheShards <= 0 {
		errs = append(errs, errors.New("CACHE_SHARDS must be > 0"))
	}
	if c.CacheMaxBytes < 0 {
		errs = append(errs, errors.New("CACHE_MAX_BYTES must be >= 0"))
	}
	if c.ConcurrencyMax < 0 {
		errs = append(errs, errors.New("CONCURRENCY_MAX must be >= 0"))
	}
	switch c.RateStatsBucket {
	case infra.SeriesMinute, infra.SeriesHour, infra.SeriesNone:
	default:
		errs = append(errs, fmt.Errorf("RATE_STATS_BUCKET must be minute, hour or none, got %q", c.RateStatsBucket))
	}
	if c.RateStatsEnabled && strings.TrimSpace(c.RateStatsRedisAddr) == "" {
		errs = append(errs, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true"))
	}
	if err := domain.ValidateRules(c.rules); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// addr usa LISTEN_ADDR, depois PORT (plataformas que só injetam a porta).
func (c config) addr() string {
	switch {
	case c.ListenAddr != "":
		return c.ListenAddr
	case c.Port != "":
		return ":" + c.Port
	default:
		return ":8080"
	}
}

func (c config) logConfig() logger.Config {
	return logger.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
	}
}

func (c config) speechConfig() speech.Config {
	return speech.Config{
		Provider:         c.SynthProvider,
		URL:              c.SynthURL,
		APIKey:           c.SynthAPIKey,
		TencentSecretID:  c.TencentSecretID,
		TencentSecretKey: c.TencentSecretKey,
		TencentRegion:    c.TencentRegion,
		Timeout:          c.SynthTimeout,
		RPS:              c.SynthRPS,
		Burst:            c.SynthBurst,
		MaxConcurrent:    c.SynthMaxConcurrent,
	}
}

func (c config) identity() ratelimit.IdentityOptions {
	return ratelimit.IdentityOptions{
		Source:             ratelimit.ClientIDSource(c.RateClientIDSource),
		ClientIDHeader:     c.RateClientIDHeader,
		RealIPHeader:       c.RateRealIPHeader,
		TrustXForwardedFor: c.TrustXFF,
	}
}
