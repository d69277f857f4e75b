package middleware

import (
	"context"
	"net/http"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"

	appctx "github.com/pulseras/pulseras-go/libs/context"
	"github.com/pulseras/pulseras-go/libs/logging"
)

// IPRateLimiterWithStore rate limits based on IP using
// a provided store and a GCRA leaky bucket algorithm.
// This can be a simple memory store or another store for
// multi-instance synchronization. See
// https://github.com/throttled/throttled/tree/master/store for details.
func IPRateLimiterWithStore(
	ctx context.Context,
	perMin int,
	burst int,
	store throttled.GCRAStore,
) func(next http.Handler) http.Handler {
	logger := logging.Logger(ctx, "middleware.IPRateLimiterWithStore")

	return func(next http.Handler) http.Handler {
		quota := throttled.RateQuota{
			MaxRate:  throttled.PerMin(perMin),
			MaxBurst: burst,
		}
		rateLimiter, err := throttled.NewGCRARateLimiter(store, quota)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create rate limiter")
		}

		httpRateLimiter := throttled.HTTPRateLimiter{
			RateLimiter: rateLimiter,
			VaryBy: &throttled.VaryBy{
				RemoteAddr: true,
				Path:       true,
				Method:     true,
			},
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// cors preflights come in quick bursts
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if actor, ok := ActorFromContext(r.Context()); ok && actor.IsAdmin() {
				// admins are not rate limited
				next.ServeHTTP(w, r)
				return
			}

			httpRateLimiter.RateLimit(next).ServeHTTP(w, r)
		})
	}
}

// RateLimiter rate limits the number of requests a
// user from a single IP address can make using a simple
// in-memory store that will not synchronize across instances.
func RateLimiter(ctx context.Context, perMin int) func(next http.Handler) http.Handler {
	logger := logging.Logger(ctx, "middleware.RateLimiter")
	store, err := memstore.New(65536)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create rate limiter store")
	}

	defaultBurst := 0
	if burst, ok := ctx.Value(appctx.RateLimiterBurstCTXKey).(int); ok {
		defaultBurst = burst
	}

	return IPRateLimiterWithStore(ctx, perMin, defaultBurst, store)
}
