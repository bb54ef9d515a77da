// Package relay expõe o conversor de texto em fala via HTTP: valida o
// pedido, aplica o rate limit por cliente e resolve o áudio pelo cache de
// síntese, que chama o provedor no máximo uma vez por chave.
package relay

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"tts-gateway/middleware/ratelimit"
	"tts-gateway/middleware/ratelimit/application"
	"tts-gateway/middleware/ratelimit/infra"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	Pipeline *Pipeline
	// Admission aplica as regras às rotas de API que não são a conversão
	// (a conversão é admitida dentro do pipeline, depois da validação).
	Admission           application.Service
	KeyFn               ratelimit.KeyFunc
	AddRateLimitHeaders bool
	Concurrency         ratelimit.ConcurrencyOptions

	// RateStats alimenta GET /api/tts/stats; nil omite a seção.
	RateStats *infra.MemoryStatsStore
	Provider  string
	StaticDir string
	Logger    *zap.Logger
}

type Server struct {
	pipeline   *Pipeline
	keyFn      ratelimit.KeyFunc
	addHeaders bool
	rateStats  *infra.MemoryStatsStore
	provider   string
	log        *zap.Logger

	handler http.Handler
}

func NewServer(cfg Config) *Server {
	if cfg.Pipeline == nil {
		cfg.Pipeline = NewPipeline(PipelineConfig{})
	}
	if cfg.KeyFn == nil {
		cfg.KeyFn = ratelimit.DefaultKeyFunc(ratelimit.IdentityOptions{Source: ratelimit.SourceRemoteAddr})
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		pipeline:   cfg.Pipeline,
		keyFn:      cfg.KeyFn,
		addHeaders: cfg.AddRateLimitHeaders,
		rateStats:  cfg.RateStats,
		provider:   cfg.Provider,
		log:        cfg.Logger,
	}

	limited := ratelimit.Middleware(ratelimit.Options{
		Service:             cfg.Admission,
		KeyFn:               cfg.KeyFn,
		AddRateLimitHeaders: cfg.AddRateLimitHeaders,
		Logger:              cfg.Logger,
	})

	mux := http.NewServeMux()
	convert := http.HandlerFunc(s.handleConvert)
	mux.Handle("POST /api/tts/convert", convert)
	mux.Handle("POST /convert", convert)
	mux.Handle("GET /api/tts/voices", limited(http.HandlerFunc(s.handleVoices)))
	mux.Handle("GET /api/tts/stats", limited(http.HandlerFunc(s.handleStats)))
	// healthz fica fora do limite para sondas de orquestração.
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if cfg.StaticDir != "" {
		mux.Handle("GET /", limited(http.FileServer(http.Dir(cfg.StaticDir))))
	}

	cfg.Concurrency.Logger = cfg.Logger

	h := http.Handler(mux)
	h = ratelimit.ConcurrencyMiddleware(cfg.Concurrency)(h)
	h = s.recoverer(h)
	h = s.accessLog(h)
	h = requestID(h)
	s.handler = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type ctxKey struct{}

// RequestID devolve o id da requisição guardado no contexto.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// statusRecorder guarda o status e o tamanho da resposta para o log de acesso.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		s.log.Info("http",
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
			zap.String("client", string(s.keyFn(r))),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("bytes", rec.bytes),
			zap.String("request_id", RequestID(r.Context())),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.log.Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("request_id", RequestID(r.Context())),
				zap.ByteString("stack", debug.Stack()),
			)
			ratelimit.WriteError(w, http.StatusInternalServerError, "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}
