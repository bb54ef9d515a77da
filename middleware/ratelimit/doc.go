// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: regras, decisões e contratos (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, política de cliente não identificado,
//     acquire/timeout) sem net/http
//   - infra: implementações concretas (janela fixa por cliente/regra, semáforo, estatísticas)
//   - ratelimit (este pacote): middlewares HTTP + extração de identidade + tradução para status/headers
//
// Fluxo:
//
//  1. Extrai a identidade do cliente (header de client id, IP real, XFF, conexão)
//  2. Chama a camada application para obter a decisão da rota lógica
//  3. Se bloqueado, responde 429 + Retry-After (rate limit), 403 (sem identidade)
//     ou 503 (concorrência)
//  4. Se permitido, chama o próximo handler
//
// A rota de conversão não usa Middleware: ela valida o corpo antes e chama o
// Service diretamente, para que entradas inválidas não consumam cota.
package ratelimit
