// Package sender собирает приложение, доставляющее уведомления из очередей по почте.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/connection-engine/internal/config"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/lib/smtp"
	"github.com/magabrotheeeer/connection-engine/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/connection-engine/internal/services/sender"
)

// App слушает очереди уведомлений и отправляет письма.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	sender *senderservice.Service
	logger *slog.Logger
}

// New подключается к RabbitMQ и объявляет очереди уведомлений.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	return &App{
		conn:   conn,
		ch:     ch,
		sender: senderservice.New(smtp.NewTransport(cfg.SMTP, logger), logger),
		logger: logger,
	}, nil
}

// Run запускает потребителей и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.QueueConnections, a.logger, a.sender.HandleConnectionEvent); err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", rabbitmq.QueueConnections), sl.Err(err))
		return err
	}
	if err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.QueuePlans, a.logger, a.sender.HandlePlanExpiring); err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", rabbitmq.QueuePlans), sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
