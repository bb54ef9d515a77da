package relay

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"tts-gateway/internal/synthcache"
)

const (
	DefaultVoice         = "en-US_AllisonV3Voice"
	DefaultMaxTextLength = 1000
)

type ConvertRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Validator confere e normaliza o pedido antes de qualquer efeito colateral.
type Validator struct {
	// MaxTextLength em runes, depois da normalização.
	MaxTextLength int
	DefaultVoice  string
	// Voices é a lista de vozes aceitas; vazia aceita qualquer uma.
	Voices []string
}

// Validate devolve o pedido normalizado (texto aparado em NFC, voz padrão
// aplicada) ou um erro que satisfaz errors.Is(err, ErrValidation).
func (v Validator) Validate(req ConvertRequest) (ConvertRequest, error) {
	maxLen := v.MaxTextLength
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	def := v.DefaultVoice
	if def == "" {
		def = DefaultVoice
	}

	out := ConvertRequest{
		Text:  synthcache.NormalizeText(req.Text),
		Voice: synthcache.NormalizeVoice(req.Voice),
	}
	if out.Voice == "" {
		out.Voice = def
	}

	var problems []error
	if out.Text == "" {
		problems = append(problems, errors.New("text cannot be empty"))
	} else if n := utf8.RuneCountInString(out.Text); n > maxLen {
		problems = append(problems, fmt.Errorf("text too long: %d characters (max %d)", n, maxLen))
	}
	if len(v.Voices) > 0 && !slices.Contains(v.Voices, out.Voice) {
		problems = append(problems, fmt.Errorf("unknown voice %q", out.Voice))
	}

	if len(problems) > 0 {
		return ConvertRequest{}, fmt.Errorf("%w: %w", ErrValidation, errors.Join(problems...))
	}
	return out, nil
}

// validationMessage achata o erro de validação numa linha para o corpo JSON.
func validationMessage(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}
