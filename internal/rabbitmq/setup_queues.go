package rabbitmq

import "github.com/magabrotheeeer/connection-engine/internal/models"

// Имена очередей уведомлений.
const (
	QueueConnections = "notifications.connections"
	QueuePlans       = "notifications.plans"
)

// QueueConfig описывает привязку очереди к ключу маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает привязки очередей уведомлений.
// Одна очередь может быть привязана к нескольким ключам.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueConnections, RoutingKey: models.EventConnectionRequested},
		{QueueName: QueueConnections, RoutingKey: models.EventConnectionAccepted},
		{QueueName: QueuePlans, RoutingKey: models.EventPlanExpiring},
	}
}
