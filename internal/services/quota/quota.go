// Package quota решает, может ли пользователь отправить ещё один запрос на связь.
// Функции пакета чистые: они не читают хранилище и не меняют переданные значения.
package quota

import (
	"time"

	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

// Причины отказа.
const (
	ReasonNoActivePlan  = "no_active_plan"
	ReasonQuotaExceeded = "quota_exceeded"
)

// Decision результат проверки квоты.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
}

// Err возвращает ошибку, соответствующую отказу, или nil для разрешения.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonQuotaExceeded {
		return apperr.ErrQuotaExceeded
	}
	return apperr.ErrNoActivePlan
}

// HasValidEntitlement сообщает, есть ли у пользователя действующий тариф:
// ссылка на тариф задана и срок истекает строго позже now.
func HasValidEntitlement(user *models.User, now time.Time) bool {
	if user == nil || user.ActiveEntitlementID == nil || *user.ActiveEntitlementID == "" {
		return false
	}
	return user.PlanExpiry != nil && user.PlanExpiry.After(now)
}

// CanRequestConnection оценивает право user отправить запрос при тарифе ent.
// ent должен быть тарифом, на который ссылается user, либо nil, если его нет.
func CanRequestConnection(user *models.User, ent *models.Entitlement, now time.Time) Decision {
	if !HasValidEntitlement(user, now) || ent == nil || ent.ID != *user.ActiveEntitlementID {
		used := 0
		if user != nil {
			used = user.ConnectionsMade
		}
		return Decision{Reason: ReasonNoActivePlan, Used: used}
	}

	remaining := ent.MaxConnections - user.ConnectionsMade
	d := Decision{
		Limit:     ent.MaxConnections,
		Used:      user.ConnectionsMade,
		Remaining: max(remaining, 0),
	}
	if remaining <= 0 {
		d.Reason = ReasonQuotaExceeded
		return d
	}
	d.Allowed = true
	return d
}

// CreditAfterAccept возвращает новое значение счётчика держателя тарифа после
// принятия связи. Счётчик не поднимается выше лимита тарифа, на который
// ссылается пользователь, даже если срок этого тарифа уже истёк.
func CreditAfterAccept(user *models.User, ent *models.Entitlement) int {
	next := user.ConnectionsMade + 1
	if ent != nil && user.ActiveEntitlementID != nil && ent.ID == *user.ActiveEntitlementID {
		if next > ent.MaxConnections {
			return max(user.ConnectionsMade, ent.MaxConnections)
		}
	}
	return next
}
