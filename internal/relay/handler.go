package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tts-gateway/internal/speech"
	"tts-gateway/internal/synthcache"
	"tts-gateway/middleware/ratelimit"
	"tts-gateway/middleware/ratelimit/domain"
	"tts-gateway/middleware/ratelimit/infra"

	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ratelimit.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	client := s.keyFn(r)
	if s.addHeaders {
		ratelimit.SetClientHeader(w, client)
	}

	audio, err := s.pipeline.Convert(r.Context(), req, client)
	if err != nil {
		s.writeConvertError(w, r, client, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "audio/mpeg")
	h.Set("Content-Disposition", `attachment; filename="speech.mp3"`)
	h.Set("Content-Length", strconv.Itoa(len(audio.Data)))
	h.Set("X-Cache", audio.Lookup.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

// writeConvertError mapeia cada desfecho do pipeline para exatamente uma
// resposta HTTP.
func (s *Server) writeConvertError(w http.ResponseWriter, r *http.Request, client domain.ClientID, err error) {
	log := s.log.With(
		zap.String("request_id", RequestID(r.Context())),
		zap.String("client", string(client)),
	)

	var denied *DeniedError
	switch {
	case errors.Is(err, ErrValidation):
		ratelimit.WriteError(w, http.StatusBadRequest, validationMessage(err))
	case errors.As(err, &denied):
		log.Info("conversion denied",
			zap.String("reason", string(denied.Decision.Reason)),
			zap.String("rule", denied.Decision.Rule),
			zap.Duration("retry_after", denied.Decision.RetryAfter),
		)
		ratelimit.WriteDenied(w, denied.Decision, s.addHeaders)
	case r.Context().Err() != nil:
		// cliente desistiu; a síntese continua e popula o cache
		log.Debug("client went away while waiting for synthesis", zap.Error(err))
	case errors.Is(err, speech.ErrNotConfigured):
		ratelimit.WriteError(w, http.StatusServiceUnavailable, "speech provider not configured")
	case errors.Is(err, speech.ErrRejected):
		ratelimit.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, speech.ErrUnavailable):
		log.Warn("speech provider unavailable", zap.Error(err))
		ratelimit.WriteError(w, http.StatusBadGateway, "speech provider unavailable")
	default:
		log.Error("conversion failed", zap.Error(err))
		ratelimit.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

type VoicesResponse struct {
	Default string   `json:"default"`
	Voices  []string `json:"voices"`
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	v := s.pipeline.validator
	resp := VoicesResponse{Default: v.DefaultVoice, Voices: v.Voices}
	if resp.Default == "" {
		resp.Default = DefaultVoice
	}
	if len(resp.Voices) == 0 {
		resp.Voices = []string{resp.Default}
	}
	writeJSON(w, http.StatusOK, resp)
}

type StatsResponse struct {
	RateLimit *infra.Snapshot  `json:"rate_limit,omitempty"`
	Cache     synthcache.Stats `json:"cache"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := StatsResponse{Cache: s.pipeline.cache.Stats()}
	if s.rateStats != nil {
		snap := s.rateStats.Snapshot()
		resp.RateLimit = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

type HealthResponse struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream"`
	Provider string `json:"provider"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok", Upstream: "configured", Provider: s.provider}
	if !speech.Configured(s.pipeline.synth) {
		resp.Upstream = "unconfigured"
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
