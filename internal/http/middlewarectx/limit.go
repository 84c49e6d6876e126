package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/connection-engine/internal/http/response"
	"github.com/magabrotheeeer/connection-engine/internal/metrics"
)

// RateLimitMiddleware ограничивает частоту запросов одним лимитером на процесс.
func RateLimitMiddleware(log *slog.Logger, limiter *rate.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Warn("too many requests", slog.String("path", r.URL.Path))
				m.RateLimited.Inc()
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.ErrorWithKind("too many requests", "rate_limited"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
