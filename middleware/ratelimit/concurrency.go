package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"tts-gateway/middleware/ratelimit/application"
	"tts-gateway/middleware/ratelimit/infra"

	"go.uber.org/zap"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// SlowAcquire: esperas acima disso são logadas em warn.
	SlowAcquire time.Duration
	Logger      *zap.Logger
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, waited, err := svc.Acquire(r.Context())
			if err != nil {
				if errors.Is(err, application.ErrNoSlot) {
					opts.Logger.Warn("no concurrency slot",
						zap.String("path", r.URL.Path),
						zap.Duration("waited", waited),
					)
					WriteError(w, opts.RejectStatus, "server busy, try again later")
				}
				// cliente desistiu enquanto esperava: não há para quem responder
				return
			}
			defer release()

			if opts.SlowAcquire > 0 && waited > opts.SlowAcquire {
				opts.Logger.Warn("slow concurrency slot acquisition",
					zap.String("path", r.URL.Path),
					zap.Duration("waited", waited),
				)
			}

			next.ServeHTTP(w, r)
		})
	}
}
