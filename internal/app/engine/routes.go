// Package engine собирает HTTP-приложение движка связей и подписок.
package engine

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/connection/connected"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/connection/dashboard"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/connection/decide"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/connection/eligibility"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/connection/incoming"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/connection/remove"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/connection/request"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/entitlement/read"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/health"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/payment/ordercreate"
	"github.com/magabrotheeeer/connection-engine/internal/http/handlers/payment/verify"
	"github.com/magabrotheeeer/connection-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/connection-engine/internal/metrics"
)

// ConnectionService операции движка связей, нужные обработчикам.
type ConnectionService interface {
	request.Service
	decide.Service
	incoming.Service
	connected.Service
	remove.Service
	dashboard.Service
}

// EntitlementService запросы прав пользователя.
type EntitlementService interface {
	read.Service
	eligibility.Service
	middlewarectx.EntitlementChecker
}

// PaymentService создание заказов и активация тарифа.
type PaymentService interface {
	ordercreate.Service
	verify.Service
}

// Deps зависимости маршрутов.
type Deps struct {
	Logger       *slog.Logger
	Tokens       middlewarectx.TokenParser
	Connections  ConnectionService
	Entitlements EntitlementService
	Payments     PaymentService
	Health       health.Checker
	Metrics      *metrics.Metrics
	Limiter      *rate.Limiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	log := d.Logger
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, log))
			r.Use(middlewarectx.RateLimitMiddleware(log, d.Limiter, d.Metrics))

			r.Post("/payments/orders", ordercreate.New(log, d.Payments).ServeHTTP)
			r.Post("/payments/verify", verify.New(log, d.Payments).ServeHTTP)
			r.Get("/entitlements/{id}", read.New(log, d.Entitlements).ServeHTTP)
			r.Get("/connections/eligibility", eligibility.New(log, d.Entitlements).ServeHTTP)

			// Операции со связями доступны только при действующем тарифе
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.EntitlementMiddleware(log, d.Entitlements))
				r.Post("/connections/requests", request.New(log, d.Connections).ServeHTTP)
				r.Put("/connections/requests", decide.New(log, d.Connections).ServeHTTP)
				r.Get("/connections/requests", incoming.New(log, d.Connections).ServeHTTP)
				r.Get("/connections/connected", connected.New(log, d.Connections).ServeHTTP)
				r.Delete("/connections/connected", remove.New(log, d.Connections).ServeHTTP)
				r.Get("/connections/dashboard", dashboard.New(log, d.Connections).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(log, d.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
