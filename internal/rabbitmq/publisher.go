package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// PublishMessage публикует сообщение в RabbitMQ в формате JSON.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ch == nil {
		return fmt.Errorf("%s: channel is not initialized", op)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher публикует события в exchange уведомлений.
type Publisher struct {
	ch       *amqp.Channel
	exchange string
}

// NewPublisher создаёт издателя поверх настроенного канала.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch, exchange: ExchangeNotifications}
}

// Publish отправляет событие с ключом маршрутизации routingKey.
func (p *Publisher) Publish(routingKey string, message any) error {
	return PublishMessage(p.ch, p.exchange, routingKey, message)
}
