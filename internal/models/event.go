package models

import "time"

// Типы событий уведомлений, они же ключи маршрутизации в RabbitMQ.
const (
	EventConnectionRequested = "connection.requested"
	EventConnectionAccepted  = "connection.accepted"
	EventPlanExpiring        = "plan.expiring"
)

// ConnectionEvent событие о новом или принятом запросе на связь.
type ConnectionEvent struct {
	Type           string    `json:"type"`
	RequestID      string    `json:"request_id"`
	ActorID        string    `json:"actor_id"`
	ActorName      string    `json:"actor_name"`
	RecipientID    string    `json:"recipient_id"`
	RecipientName  string    `json:"recipient_name"`
	RecipientEmail string    `json:"recipient_email"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PlanExpiringInfo данные для напоминания об окончании тарифа.
type PlanExpiringInfo struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	PlanName   string    `json:"plan_name"`
	PlanExpiry time.Time `json:"plan_expiry"`
}
