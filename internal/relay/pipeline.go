package relay

import (
	"context"

	"tts-gateway/internal/speech"
	"tts-gateway/internal/synthcache"
	"tts-gateway/middleware/ratelimit/application"
	"tts-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// ConvertRoute é a rota lógica contada pelo rate limit para as duas
// montagens do endpoint de conversão.
const ConvertRoute = "POST /convert"

type Audio struct {
	Data   []byte
	Voice  string
	Key    synthcache.Key
	Lookup synthcache.Lookup
}

type PipelineConfig struct {
	Validator Validator
	Admission application.Service
	Cache     *synthcache.Cache
	Synth     speech.Synthesizer
	Logger    *zap.Logger
}

// Pipeline executa validar → admitir → cache/síntese, nessa ordem. Um
// pedido inválido nunca consome cota e um pedido negado nunca chega ao
// provedor.
type Pipeline struct {
	validator Validator
	admission application.Service
	cache     *synthcache.Cache
	synth     speech.Synthesizer
	log       *zap.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Cache == nil {
		cfg.Cache = synthcache.New()
	}
	if cfg.Synth == nil {
		cfg.Synth = &speech.Unconfigured{Provider: "none"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{
		validator: cfg.Validator,
		admission: cfg.Admission,
		cache:     cfg.Cache,
		synth:     cfg.Synth,
		log:       cfg.Logger,
	}
}

func (p *Pipeline) Convert(ctx context.Context, req ConvertRequest, client domain.ClientID) (Audio, error) {
	req, err := p.validator.Validate(req)
	if err != nil {
		return Audio{}, err
	}

	dec := p.admission.Decide(ctx, client, ConvertRoute)
	if !dec.Allowed {
		return Audio{}, &DeniedError{Decision: dec}
	}

	key := synthcache.Fingerprint(req.Voice, req.Text)
	data, lookup, err := p.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		return p.synth.Synthesize(ctx, req.Text, req.Voice)
	})

	audio := Audio{Voice: req.Voice, Key: key, Lookup: lookup}
	if err != nil {
		return audio, err
	}
	audio.Data = data

	p.log.Debug("converted",
		zap.String("client", string(client)),
		zap.String("voice", req.Voice),
		zap.String("cache", lookup.String()),
		zap.Int("bytes", len(data)),
	)
	return audio, nil
}
