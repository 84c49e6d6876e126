// Package scheduler собирает приложение, которое напоминает об истекающих тарифах.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/connection-engine/internal/config"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/rabbitmq"
	schedulerservice "github.com/magabrotheeeer/connection-engine/internal/services/scheduler"
	"github.com/magabrotheeeer/connection-engine/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	scheduler *schedulerservice.Service
	interval  time.Duration
	db        *repository.Storage
	conn      *amqp.Connection
	ch        *amqp.Channel
	logger    *slog.Logger
}

// New подключает хранилище и брокер и создаёт сервис напоминаний.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	// Схему применяет основной сервис, здесь только ждём её.
	if err := db.WaitReady(ctx, 10, 3*time.Second); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	return &App{
		scheduler: schedulerservice.New(db, rabbitmq.NewPublisher(ch), logger),
		interval:  cfg.ReminderInterval,
		db:        db,
		conn:      conn,
		ch:        ch,
		logger:    logger,
	}, nil
}

// Run выполняет проходы планировщика до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Run(ctx, a.interval)

	a.logger.Info("shutting down scheduler service")
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	return nil
}
