// fake-synth imita a API de síntese do Watson para desenvolvimento local:
// mesma rota, mesma autenticação e mesmos códigos de erro, devolvendo um
// MP3 falso.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"tts-gateway/internal/logger"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

type config struct {
	ListenAddr string        `env:"FAKE_LISTEN_ADDR" envDefault:":8081"`
	APIKey     string        `env:"FAKE_API_KEY"`
	Delay      time.Duration `env:"FAKE_DELAY"       envDefault:"0"`
	Voices     []string      `env:"FAKE_VOICES"      envSeparator:"," envDefault:"en-US_AllisonV3Voice,en-US_MichaelV3Voice,pt-BR_IsabelaV3Voice"`
	LogLevel   string        `env:"LOG_LEVEL"        envDefault:"info"`
}

func main() {
	_ = logger.Init(logger.Config{})

	cfg, err := env.ParseAs[config]()
	if err != nil {
		logger.L.Fatalf("config error: %v", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel}); err != nil {
		logger.L.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newHandler(cfg, logger.Z),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Z.Info("fake synth listening",
		zap.String("addr", cfg.ListenAddr),
		zap.Bool("auth", cfg.APIKey != ""),
		zap.Strings("voices", cfg.Voices),
		zap.Duration("delay", cfg.Delay),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Z.Fatal("server error", zap.Error(err))
	}
}

type fakeServer struct {
	cfg   config
	log   *zap.Logger
	calls atomic.Int64
}

func newHandler(cfg config, log *zap.Logger) http.Handler {
	s := &fakeServer{cfg: cfg, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/synthesize", s.synthesize)
	mux.HandleFunc("GET /v1/voices", s.voices)
	return mux
}

type watsonError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(watsonError{Error: msg, Code: status})
}

func (s *fakeServer) authorized(r *http.Request) bool {
	if s.cfg.APIKey == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == "apikey" && subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.APIKey)) == 1
}

func (s *fakeServer) synthesize(w http.ResponseWriter, r *http.Request) {
	n := s.calls.Add(1)

	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	voice := r.URL.Query().Get("voice")
	if voice == "" {
		voice = "en-US_MichaelV3Voice"
	}
	if !slices.Contains(s.cfg.Voices, voice) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Model %s not found", voice))
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON input")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "No text specified")
		return
	}

	if s.cfg.Delay > 0 {
		select {
		case <-time.After(s.cfg.Delay):
		case <-r.Context().Done():
			return
		}
	}

	s.log.Info("synthesize",
		zap.Int64("call", n),
		zap.String("voice", voice),
		zap.Int("chars", len([]rune(body.Text))),
	)

	w.Header().Set("Content-Type", "audio/mp3")
	_, _ = w.Write(fakeMP3(voice, body.Text))
}

func (s *fakeServer) voices(w http.ResponseWriter, _ *http.Request) {
	type voice struct {
		Name string `json:"name"`
	}
	out := struct {
		Voices []voice `json:"voices"`
	}{}
	for _, v := range s.cfg.Voices {
		out.Voices = append(out.Voices, voice{Name: v})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// fakeMP3 devolve um cabeçalho ID3 vazio seguido do pedido, o bastante para
// o cliente reconhecer o formato e os testes compararem o conteúdo.
func fakeMP3(voice, text string) []byte {
	id3 := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0}
	return append(id3, []byte(voice+"|"+text)...)
}
