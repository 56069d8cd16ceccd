// Package academy provides the routes of the API binary.
package academy

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/traderoom/trading-academy/internal/http/handlers/admin/schedulerrun"
	"github.com/traderoom/trading-academy/internal/http/handlers/admin/statusoverride"
	"github.com/traderoom/trading-academy/internal/http/handlers/auth/login"
	"github.com/traderoom/trading-academy/internal/http/handlers/auth/register"
	"github.com/traderoom/trading-academy/internal/http/handlers/forum/categorycreate"
	"github.com/traderoom/trading-academy/internal/http/handlers/forum/categorylist"
	"github.com/traderoom/trading-academy/internal/http/handlers/forum/postcreate"
	"github.com/traderoom/trading-academy/internal/http/handlers/forum/postlist"
	"github.com/traderoom/trading-academy/internal/http/handlers/forum/replylist"
	"github.com/traderoom/trading-academy/internal/http/handlers/forum/vote"
	"github.com/traderoom/trading-academy/internal/http/handlers/journal/metricsread"
	"github.com/traderoom/trading-academy/internal/http/handlers/journal/tradecreate"
	"github.com/traderoom/trading-academy/internal/http/handlers/journal/tradelist"
	"github.com/traderoom/trading-academy/internal/http/handlers/journal/traderemove"
	"github.com/traderoom/trading-academy/internal/http/handlers/plan/planlist"
	"github.com/traderoom/trading-academy/internal/http/handlers/portfolio/holdinglist"
	"github.com/traderoom/trading-academy/internal/http/handlers/portfolio/holdingremove"
	"github.com/traderoom/trading-academy/internal/http/handlers/portfolio/holdingset"
	"github.com/traderoom/trading-academy/internal/http/handlers/portfolio/portfoliovalue"
	"github.com/traderoom/trading-academy/internal/http/handlers/subscription/cancel"
	"github.com/traderoom/trading-academy/internal/http/handlers/subscription/checkout"
	"github.com/traderoom/trading-academy/internal/http/handlers/subscription/history"
	"github.com/traderoom/trading-academy/internal/http/handlers/subscription/read"
	"github.com/traderoom/trading-academy/internal/http/handlers/webhook"
	"github.com/traderoom/trading-academy/internal/http/middlewarectx"
	"github.com/traderoom/trading-academy/internal/lib/jwt"
	"github.com/traderoom/trading-academy/internal/paymentprovider"
)

// RegisterRoutes registers all routes of the application.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker, services *Services, providers map[string]paymentprovider.Provider, channel *amqp.Channel) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Open endpoints.
		r.Post("/register", register.New(logger, services.Auth).ServeHTTP)
		r.Post("/login", login.New(logger, services.Auth).ServeHTTP)
		r.Get("/plans", planlist.New(logger, services.Subscription).ServeHTTP)

		// Gateway callbacks, authenticated by signature instead of JWT.
		for name, provider := range providers {
			r.Post("/webhooks/"+name, webhook.New(logger, provider, services.Payment).ServeHTTP)
		}

		// Authenticated endpoints.
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/subscriptions/checkout", checkout.New(logger, services.Subscription).ServeHTTP)
			r.Get("/subscriptions/current", read.New(logger, services.Subscription).ServeHTTP)
			r.Post("/subscriptions/cancel", cancel.New(logger, services.Subscription).ServeHTTP)
			r.Get("/subscriptions/history", history.New(logger, services.Subscription).ServeHTTP)

			r.Get("/forum/categories", categorylist.New(logger, services.Forum).ServeHTTP)
			r.Get("/forum/categories/{id}/posts", postlist.New(logger, services.Forum).ServeHTTP)
			r.Post("/forum/posts", postcreate.New(logger, services.Forum).ServeHTTP)
			r.Get("/forum/posts/{id}/replies", replylist.New(logger, services.Forum).ServeHTTP)
			r.Post("/forum/posts/{id}/vote", vote.New(logger, services.Forum).ServeHTTP)

			r.Post("/journal/trades", tradecreate.New(logger, services.Journal).ServeHTTP)
			r.Get("/journal/trades", tradelist.New(logger, services.Journal).ServeHTTP)
			r.Delete("/journal/trades/{id}", traderemove.New(logger, services.Journal).ServeHTTP)
			r.Get("/journal/metrics", metricsread.New(logger, services.Journal).ServeHTTP)

			r.Put("/portfolio/holdings", holdingset.New(logger, services.Portfolio).ServeHTTP)
			r.Get("/portfolio/holdings", holdinglist.New(logger, services.Portfolio).ServeHTTP)
			r.Delete("/portfolio/holdings/{asset}", holdingremove.New(logger, services.Portfolio).ServeHTTP)
			r.Get("/portfolio/value", portfoliovalue.New(logger, services.Portfolio).ServeHTTP)

			// Admin endpoints.
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole("admin", logger))
				r.Post("/forum/categories", categorycreate.New(logger, services.Forum).ServeHTTP)
				r.Patch("/admin/subscriptions/{id}/status", statusoverride.New(logger, services.Subscription).ServeHTTP)
				r.Post("/admin/scheduler/run", schedulerrun.New(logger, services.Scheduler, channel).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
