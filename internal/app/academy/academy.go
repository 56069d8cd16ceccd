// Package academy wires the API binary: storage, cache, broker, the
// payment providers and all services behind the HTTP router.
package academy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/traderoom/trading-academy/internal/cache"
	"github.com/traderoom/trading-academy/internal/config"
	"github.com/traderoom/trading-academy/internal/lib/jwt"
	"github.com/traderoom/trading-academy/internal/lib/rabbitmq"
	"github.com/traderoom/trading-academy/internal/marketdata"
	"github.com/traderoom/trading-academy/internal/migrations"
	"github.com/traderoom/trading-academy/internal/paymentprovider"
	authservice "github.com/traderoom/trading-academy/internal/services/auth"
	forumservice "github.com/traderoom/trading-academy/internal/services/forum"
	journalservice "github.com/traderoom/trading-academy/internal/services/journal"
	paymentservice "github.com/traderoom/trading-academy/internal/services/payment"
	portfolioservice "github.com/traderoom/trading-academy/internal/services/portfolio"
	schedulerservice "github.com/traderoom/trading-academy/internal/services/scheduler"
	subservice "github.com/traderoom/trading-academy/internal/services/subscription"
	"github.com/traderoom/trading-academy/internal/storage/repository"
)

// Services groups everything the router needs.
type Services struct {
	Auth         *authservice.AuthService
	Subscription *subservice.SubscriptionService
	Payment      *paymentservice.PaymentService
	Forum        *forumservice.ForumService
	Journal      *journalservice.JournalService
	Portfolio    *portfolioservice.PortfolioService
	Scheduler    *schedulerservice.SchedulerService
}

// App is the API application.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New builds the App from the configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	providers := map[string]paymentprovider.Provider{
		"stripe":      paymentprovider.NewStripe(cfg.Providers.Stripe.SecretKey, cfg.Providers.Stripe.WebhookSecret),
		"flutterwave": paymentprovider.NewFlutterwave(cfg.Providers.Flutterwave.SecretKey, cfg.Providers.Flutterwave.SecretHash),
		"nowpayments": paymentprovider.NewNOWPayments(cfg.Providers.NOWPayments.APIKey, cfg.Providers.NOWPayments.IPNSecret),
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)
	prices := marketdata.NewClient(cfg.MarketData.BaseURL, cfg.MarketData.Currency)

	subscriptionService := subservice.NewSubscriptionService(db, cacheRedis, providers, cfg.HTTPServer.PublicBaseURL, logger)
	services := &Services{
		Auth:         authservice.NewAuthService(db, subscriptionService, jwtMaker),
		Subscription: subscriptionService,
		Payment:      paymentservice.NewPaymentService(db, subscriptionService, logger),
		Forum:        forumservice.NewForumService(db, logger),
		Journal:      journalservice.NewJournalService(db, cacheRedis, logger),
		Portfolio:    portfolioservice.NewPortfolioService(db, prices, cacheRedis, cfg.MarketData.Currency, cfg.MarketData.PriceTTL, logger),
		Scheduler:    schedulerservice.NewSchedulerService(db, logger),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, services, providers, ch)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if chErr := a.ch.Close(); chErr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", chErr))
		}
		if connErr := a.conn.Close(); connErr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", connErr))
		}
		a.db.DB.Close()
		return err
	}
}
