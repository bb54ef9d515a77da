package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"tts-gateway/middleware/ratelimit/application"
	"tts-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// KeyFunc extrai a identidade do cliente. Vazio = cliente não identificado.
type KeyFunc func(r *http.Request) domain.ClientID

// ClientIDSource escolhe de onde vem a identidade do cliente.
type ClientIDSource string

const (
	// SourceHeader usa o header de client id e cai para o IP quando ausente.
	// O header vem do cliente: use só atrás de um proxy que o sobrescreve.
	SourceHeader ClientIDSource = "header"
	// SourceRemoteAddr usa apenas IP (header de IP real, XFF, conexão).
	SourceRemoteAddr ClientIDSource = "remote"
)

type IdentityOptions struct {
	Source             ClientIDSource
	ClientIDHeader     string // ex.: X-ClientId
	RealIPHeader       string // ex.: X-Real-IP, definido pelo proxy de borda
	TrustXForwardedFor bool
}

func DefaultKeyFunc(opts IdentityOptions) KeyFunc {
	return func(r *http.Request) domain.ClientID {
		if opts.Source == SourceHeader && opts.ClientIDHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(opts.ClientIDHeader)); v != "" {
				return domain.ClientID(v)
			}
		}

		if opts.RealIPHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(opts.RealIPHeader)); v != "" {
				return domain.ClientID(v)
			}
		}

		if opts.TrustXForwardedFor {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return domain.ClientID(ip)
				}
			}
		}

		addr := strings.TrimSpace(r.RemoteAddr)
		host, _, err := net.SplitHostPort(addr)
		if err == nil && host != "" {
			return domain.ClientID(host)
		}
		return domain.ClientID(addr)
	}
}

// RouteKey devolve a rota lógica da requisição: o padrão registrado no
// ServeMux quando houver, senão "MÉTODO /path".
func RouteKey(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.Method + " " + r.URL.Path
}

type Options struct {
	Service application.Service
	KeyFn   KeyFunc
	// Route fixa a rota lógica avaliada; vazio usa RouteKey(r).
	Route               string
	AddRateLimitHeaders bool
	Logger              *zap.Logger
}

// Middleware aplica o rate limit antes do próximo handler.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(IdentityOptions{Source: SourceRemoteAddr})
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := opts.KeyFn(r)
			route := opts.Route
			if route == "" {
				route = RouteKey(r)
			}

			if opts.AddRateLimitHeaders {
				SetClientHeader(w, client)
			}

			dec := opts.Service.Decide(r.Context(), client, route)
			if !dec.Allowed {
				opts.Logger.Info("request denied",
					zap.String("client", string(client)),
					zap.String("route", route),
					zap.String("reason", string(dec.Reason)),
					zap.String("rule", dec.Rule),
					zap.Duration("retry_after", dec.RetryAfter),
				)
				WriteDenied(w, dec, opts.AddRateLimitHeaders)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func SetClientHeader(w http.ResponseWriter, client domain.ClientID) {
	if client == "" {
		client = domain.UnknownClient
	}
	w.Header().Set("X-RateLimit-Client", string(client))
}

// WriteDenied traduz uma negação para HTTP: 429 + Retry-After quando for
// limite de taxa, 403 quando o cliente não pôde ser identificado.
func WriteDenied(w http.ResponseWriter, dec domain.Decision, addHeaders bool) {
	if dec.Reason == domain.ReasonUnidentified {
		WriteError(w, http.StatusForbidden, "client identity unavailable")
		return
	}
	if addHeaders && dec.Rule != "" {
		w.Header().Set("X-RateLimit-Rule", dec.Rule)
	}
	w.Header().Set("Retry-After", formatRetryAfter(dec.RetryAfter))
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:      "rate limit exceeded",
		RetryAfter: retryAfterSeconds(dec.RetryAfter),
	})
}
