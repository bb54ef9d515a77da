// Package domain define contratos e tipos de domínio para rate limit e concorrência:
// regras por rota, decisões (allow/deny + retry-after) e eventos de estatística.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
