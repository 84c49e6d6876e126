package models

import "time"

// ConnectionStatus состояние запроса на связь.
type ConnectionStatus string

const (
	StatusPending  ConnectionStatus = "pending"
	StatusAccepted ConnectionStatus = "accepted"
	StatusRejected ConnectionStatus = "rejected"
	// StatusRemoved терминальное состояние мягкого удаления, строка не удаляется.
	StatusRemoved ConnectionStatus = "removed"
)

// Decision решение получателя по входящему запросу.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Valid сообщает, является ли решение допустимым.
func (d Decision) Valid() bool {
	return d == DecisionAccept || d == DecisionReject
}

// Target возвращает статус, в который переводит запрос данное решение.
func (d Decision) Target() ConnectionStatus {
	if d == DecisionAccept {
		return StatusAccepted
	}
	return StatusRejected
}

var transitions = map[ConnectionStatus][]ConnectionStatus{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusRemoved},
}

// CanTransitionTo проверяет переход по машине состояний
// pending → {accepted, rejected}, accepted → removed.
func (s ConnectionStatus) CanTransitionTo(next ConnectionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ConnectionRequest запрос на связь между упорядоченной парой пользователей.
type ConnectionRequest struct {
	ID         string           `json:"id"`
	FromUserID string           `json:"from_user_id"`
	ToUserID   string           `json:"to_user_id"`
	Status     ConnectionStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// IncomingRequest входящий запрос вместе с карточкой отправителя.
type IncomingRequest struct {
	ConnectionRequest
	FromUser ProfileSummary `json:"from_user"`
}

// Connection принятая связь, разрешённая до карточки собеседника.
type Connection struct {
	ID            string         `json:"id"`
	ConnectedAt   time.Time      `json:"connected_at"`
	ConnectedUser ProfileSummary `json:"connected_user"`
}

// Dashboard сводка по связям пользователя.
type Dashboard struct {
	PendingRequests  int `json:"pending_requests"`
	TotalConnections int `json:"total_connections"`
}
