package models

import "time"

// EntitlementStatusVerified статус подписки, созданной по проверенному платежу.
const EntitlementStatusVerified = "verified"

// Entitlement активированная подписка с квотой связей. После создания не изменяется.
type Entitlement struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	PaymentID      string    `json:"payment_id"`
	Signature      string    `json:"signature"`
	Status         string    `json:"status"`
	Name           string    `json:"name"`
	Price          int64     `json:"price"`
	DurationMonths int       `json:"duration_months"`
	MaxConnections int       `json:"max_connections"`
	CreatedAt      time.Time `json:"created_at"`
}

// ActivationRequest подтверждение платежа от клиента вместе с параметрами тарифа.
type ActivationRequest struct {
	OrderID        string `json:"order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
	UserID         string `json:"user_id"`
	PlanName       string `json:"name"`
	Price          int64  `json:"price"`
	MaxConnections int    `json:"max_connections"`
}

// Activation результат успешной активации.
type Activation struct {
	Entitlement *Entitlement `json:"subscription_plan"`
	User        *User        `json:"user"`
}
