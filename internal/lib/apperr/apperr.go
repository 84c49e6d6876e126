// Package apperr содержит таксономию ошибок движка связей и подписок.
// Каждая ошибка имеет стабильный машиночитаемый вид (kind), по которому
// HTTP-слой выбирает код ответа и пользовательское сообщение.
package apperr

import (
	"errors"
	"fmt"
)

// Базовые ошибки. Слои ниже оборачивают их через fmt.Errorf("%s: %w", op, err).
var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidState            = errors.New("invalid state transition")
	ErrDuplicateRequest        = errors.New("connection request already sent")
	ErrQuotaExceeded           = errors.New("maximum connections reached")
	ErrNoActivePlan            = errors.New("no active plan")
	ErrSignatureMismatch       = errors.New("payment signature mismatch")
	ErrTransactionFailure      = errors.New("transaction failed")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	ErrProvider                = errors.New("payment provider error")
	ErrForbidden               = errors.New("action is not allowed for this user")
)

// Уточнённые варианты ErrNotFound.
var (
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrRequestNotFound     = fmt.Errorf("connection request %w", ErrNotFound)
	ErrEntitlementNotFound = fmt.Errorf("entitlement %w", ErrNotFound)
)

// Стабильные значения kind для внешних клиентов.
const (
	KindNotFound                = "not_found"
	KindInvalidState            = "invalid_state"
	KindDuplicateRequest        = "duplicate_request"
	KindQuotaExceeded           = "quota_exceeded"
	KindNoActivePlan            = "no_active_plan"
	KindSignatureMismatch       = "signature_mismatch"
	KindTransactionFailure      = "transaction_failure"
	KindInvalidRequest          = "invalid_request"
	KindPaymentAlreadyProcessed = "payment_already_processed"
	KindProvider                = "provider_error"
	KindForbidden               = "forbidden"
	KindInternal                = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidState, KindInvalidState},
	{ErrDuplicateRequest, KindDuplicateRequest},
	{ErrQuotaExceeded, KindQuotaExceeded},
	{ErrNoActivePlan, KindNoActivePlan},
	{ErrSignatureMismatch, KindSignatureMismatch},
	{ErrTransactionFailure, KindTransactionFailure},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrPaymentAlreadyProcessed, KindPaymentAlreadyProcessed},
	{ErrProvider, KindProvider},
	{ErrForbidden, KindForbidden},
}

// Kind возвращает машиночитаемый вид ошибки. Для неизвестных ошибок: KindInternal,
// для nil: пустую строку.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsBusiness сообщает, является ли ошибка отказом по бизнес-правилу.
// Такие ошибки не повторяются.
func IsBusiness(err error) bool {
	switch Kind(err) {
	case "", KindInternal, KindTransactionFailure, KindProvider:
		return false
	default:
		return true
	}
}

var refined = []error{ErrUserNotFound, ErrRequestNotFound, ErrEntitlementNotFound}

// Message возвращает безопасный для клиента текст ошибки: текст известного
// сентинела без деталей из нижних слоёв. Для неизвестных ошибок: "internal error".
func Message(err error) string {
	for _, e := range refined {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return "internal error"
}
