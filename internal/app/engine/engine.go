package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/connection-engine/internal/cache"
	"github.com/magabrotheeeer/connection-engine/internal/config"
	"github.com/magabrotheeeer/connection-engine/internal/lib/jwt"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/metrics"
	"github.com/magabrotheeeer/connection-engine/internal/migrations"
	"github.com/magabrotheeeer/connection-engine/internal/paymentprovider"
	"github.com/magabrotheeeer/connection-engine/internal/rabbitmq"
	"github.com/magabrotheeeer/connection-engine/internal/services/connection"
	"github.com/magabrotheeeer/connection-engine/internal/services/entitlement"
	"github.com/magabrotheeeer/connection-engine/internal/services/payment"
	"github.com/magabrotheeeer/connection-engine/internal/storage/repository"
)

// App HTTP-приложение движка.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создаёт приложение: поднимает хранилище, применяет миграции,
// подключает кэш и брокер, если они настроены, и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	app := &App{logger: logger, db: db}

	var entCache entitlement.Cache
	if cfg.Addr != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		app.cache = c
		entCache = c
	} else {
		logger.Warn("redis address is empty, entitlement cache disabled")
	}

	var notifier connection.Notifier
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		app.conn = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		app.ch = ch
		notifier = rabbitmq.NewPublisher(ch)
	} else {
		logger.Warn("rabbitmq url is empty, notifications disabled")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	entitlements := entitlement.New(db, entCache, logger)
	connections := connection.New(db, notifier, logger, m, cfg.AcceptCreditPolicy)
	payments := payment.New(db, paymentprovider.NewClient(cfg.Payment), entitlements, logger, m, cfg.ProviderKeySecret, cfg.Engine)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:       logger,
		Tokens:       jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Connections:  connections,
		Entitlements: entitlements,
		Payments:     payments,
		Health:       db,
		Metrics:      m,
		Limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
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
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
