package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// WildcardRoute casa com qualquer rota.
const WildcardRoute = "*"

// Rule limita a Max requisições por janela fixa de Window, por cliente.
type Rule struct {
	Route  string
	Window time.Duration
	Max    int
}

func (r Rule) IsWildcard() bool { return r.Route == WildcardRoute }

// Matches informa se a regra se aplica à rota lógica informada.
func (r Rule) Matches(route string) bool {
	return r.IsWildcard() || r.Route == route
}

var ErrInvalidRule = errors.New("invalid rate limit rule")

// ValidateRules verifica o conjunto de regras carregado no startup.
// Um conjunto inválido é erro fatal de configuração.
func ValidateRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		route := strings.TrimSpace(r.Route)
		switch {
		case route == "":
			return errors.Join(ErrInvalidRule, fmt.Errorf("rule %d: route is required", i))
		case r.Window <= 0:
			return errors.Join(ErrInvalidRule, fmt.Errorf("rule %q: window must be > 0", route))
		case r.Max <= 0:
			return errors.Join(ErrInvalidRule, fmt.Errorf("rule %q: max must be > 0", route))
		}
		if _, dup := seen[route]; dup {
			return errors.Join(ErrInvalidRule, fmt.Errorf("rule %q: duplicated route", route))
		}
		seen[route] = struct{}{}
	}
	return nil
}

// OrderRules devolve as regras específicas (na ordem configurada) seguidas
// das curingas.
func OrderRules(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if !r.IsWildcard() {
			out = append(out, r)
		}
	}
	for _, r := range rules {
		if r.IsWildcard() {
			out = append(out, r)
		}
	}
	return out
}

// DefaultRules: 2 conversões por minuto e 10 requisições por hora, por cliente.
func DefaultRules() []Rule {
	return []Rule{
		{Route: "POST /convert", Window: time.Minute, Max: 2},
		{Route: WildcardRoute, Window: time.Hour, Max: 10},
	}
}
