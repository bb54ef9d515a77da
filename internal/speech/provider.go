package speech

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	ProviderWatson  = "watson"
	ProviderEdge    = "edge"
	ProviderTencent = "tencent"
)

type Config struct {
	Provider string

	URL    string
	APIKey string

	TencentSecretID  string
	TencentSecretKey string
	TencentRegion    string

	Timeout       time.Duration
	RPS           float64
	Burst         int
	MaxConcurrent int64
}

// New monta o Synthesizer do provedor escolhido, já com ritmo e limite de
// concorrência. Provedor desconhecido é erro; credencial ausente não é:
// devolve *Unconfigured.
func New(cfg Config, log *zap.Logger) (Synthesizer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("speech")

	var s Synthesizer
	switch cfg.Provider {
	case ProviderWatson, "":
		var missing []string
		if cfg.URL == "" {
			missing = append(missing, "SYNTH_URL")
		}
		if cfg.APIKey == "" {
			missing = append(missing, "SYNTH_API_KEY")
		}
		if len(missing) > 0 {
			return &Unconfigured{Provider: ProviderWatson, Missing: missing}, nil
		}
		w, err := NewWatson(WatsonConfig{
			URL:    cfg.URL,
			APIKey: cfg.APIKey,
			Client: &http.Client{Timeout: cfg.Timeout},
			Logger: log,
		})
		if err != nil {
			return nil, err
		}
		s = w
	case ProviderEdge:
		s = NewEdge(log)
	case ProviderTencent:
		if cfg.TencentSecretID == "" || cfg.TencentSecretKey == "" {
			return &Unconfigured{
				Provider: ProviderTencent,
				Missing:  []string{"TENCENT_SECRET_ID", "TENCENT_SECRET_KEY"},
			}, nil
		}
		t, err := NewTencent(TencentConfig{
			SecretID:  cfg.TencentSecretID,
			SecretKey: cfg.TencentSecretKey,
			Region:    cfg.TencentRegion,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		s = t
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}

	return NewPaced(s, cfg.RPS, cfg.Burst, cfg.MaxConcurrent), nil
}
