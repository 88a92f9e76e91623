package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/summit-offroad/api/internal/platform/httpx"
	"github.com/summit-offroad/api/internal/platform/observability"
	"github.com/summit-offroad/api/internal/platform/ratelimit"
	"github.com/summit-offroad/api/internal/platform/requestctx"
)

// sessionHeader carries the storefront session identifier; it doubles as the
// rate-limit client key so one browser shares one bucket across IP changes.
const sessionHeader = "X-Session-Id"

// RateLimit denies requests past the per-client window limit with a distinct
// error code, so storefront clients can back off.
func RateLimit(limiter *ratelimit.Limiter, metrics *observability.FunnelMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientID := clientIdentifier(r)
			ctx := requestctx.WithClientID(r.Context(), clientID)

			if !limiter.Allow(clientID) {
				metrics.RecordRateLimited(ctx)
				httpx.WriteError(ctx, w, httpx.NewError("rate_limit_exceeded", "request limit reached, retry later", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientIdentifier resolves the limiter key: session header first, remote IP
// second. RealIP middleware has already rewritten RemoteAddr when proxied.
func clientIdentifier(r *http.Request) string {
	if session := strings.TrimSpace(r.Header.Get(sessionHeader)); session != "" {
		return "session:" + session
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
