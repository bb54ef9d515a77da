package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultMaxAudioBytes = 32 << 20

type WatsonConfig struct {
	URL    string
	APIKey string
	// Client opcional; o padrão tem Timeout de 30s.
	Client *http.Client
	// MaxAudioBytes limita a resposta; acima disso o áudio é recusado.
	MaxAudioBytes int64
	Logger        *zap.Logger
}

// Watson chama a API REST de Text to Speech da IBM:
// POST {url}/v1/synthesize?voice=V com basic auth "apikey:<chave>".
type Watson struct {
	endpoint string
	apiKey   string
	client   *http.Client
	maxAudio int64
	log      *zap.Logger
}

func NewWatson(cfg WatsonConfig) (*Watson, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("watson: empty service url")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("watson: invalid service url: %w", err)
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = defaultMaxAudioBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Watson{
		endpoint: base + "/v1/synthesize",
		apiKey:   cfg.APIKey,
		client:   cfg.Client,
		maxAudio: cfg.MaxAudioBytes,
		log:      cfg.Logger,
	}, nil
}

type watsonRequest struct {
	Text string `json:"text"`
}

type watsonError struct {
	Error       string `json:"error"`
	Code        int    `json:"code"`
	Description string `json:"code_description"`
}

func (w *Watson) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	body, err := json.Marshal(watsonRequest{Text: text})
	if err != nil {
		return nil, err
	}

	u := w.endpoint + "?" + url.Values{"voice": {voice}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth("apikey", w.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mp3")

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, unavailableErr("watson request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, w.maxAudio+1))
	if err != nil {
		return nil, unavailableErr("watson read body", err)
	}
	if int64(len(data)) > w.maxAudio {
		return nil, unavailable("watson audio too large (> %d bytes)", w.maxAudio)
	}

	w.log.Debug("watson synthesize",
		zap.String("voice", voice),
		zap.Int("chars", len([]rune(text))),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusOK:
		if len(data) == 0 {
			return nil, unavailable("watson returned empty audio")
		}
		return data, nil
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusNotFound:
		return nil, rejected("%s", watsonMessage(resp.StatusCode, data))
	default:
		// 401/403 (credencial), 429 (limite do provedor), 5xx
		return nil, unavailable("%s", watsonMessage(resp.StatusCode, data))
	}
}

func watsonMessage(status int, body []byte) string {
	var we watsonError
	if err := json.Unmarshal(body, &we); err == nil && we.Error != "" {
		return we.Error
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" || len(msg) > 200 {
		return fmt.Sprintf("watson status %d", status)
	}
	return msg
}
