// utilitários pequenos para Retry-After e corpo de erro JSON, compartilhados
// entre os middlewares e o handler de conversão.

package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// retryAfterSeconds arredonda para cima: o cliente nunca deve voltar antes da
// janela abrir. Qualquer espera positiva vira pelo menos 1s.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func formatRetryAfter(d time.Duration) string { return strconv.Itoa(retryAfterSeconds(d)) }

type errorBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// WriteError responde {"error": msg} com o status informado.
func WriteError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
