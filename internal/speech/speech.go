// Package speech fala com os provedores de síntese de voz (Watson, Edge,
// Tencent) atrás de uma interface única. Os erros são classificados em
// transitórios (ErrUnavailable) e permanentes (ErrRejected).
package speech

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable: provedor fora do ar, credencial recusada, limite do
	// provedor, timeout ou falha de rede. Tentar de novo pode funcionar.
	ErrUnavailable = errors.New("speech provider unavailable")

	// ErrRejected: o provedor recusou a entrada (voz inválida, texto malformado).
	ErrRejected = errors.New("speech provider rejected the request")

	// ErrNotConfigured acompanha ErrUnavailable quando faltam credenciais.
	ErrNotConfigured = errors.New("speech provider not configured")
)

// Synthesizer converte texto em áudio MP3 com a voz indicada.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

func unavailableErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// Unconfigured responde ErrUnavailable a tudo. É o que sobe quando o
// provedor escolhido não tem credenciais: o serviço inicia, o health
// avisa e as conversões falham com 503.
type Unconfigured struct {
	Provider string
	Missing  []string
}

func (u *Unconfigured) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, errors.Join(ErrUnavailable, ErrNotConfigured,
		fmt.Errorf("provider %q is missing %v", u.Provider, u.Missing))
}

// Configured diz se s chama de fato um provedor.
func Configured(s Synthesizer) bool {
	_, ok := s.(*Unconfigured)
	return !ok
}
