// Package models содержит доменные структуры движка связей и подписок:
// пользователя, запрос на связь, подписку (entitlement) и события уведомлений.
package models

import "time"

// User представляет строку пользователя. Профилем владеет внешний сервис,
// движок читает её и изменяет только поля тарифа и счётчик связей.
type User struct {
	UID                 string     `json:"uid"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	ProfilePic          string     `json:"profile_pic,omitempty"`
	DateOfBirth         *time.Time `json:"dob,omitempty"`
	City                string     `json:"city,omitempty"`
	ActiveEntitlementID *string    `json:"active_entitlement_id,omitempty"` // Ссылка на действующий тариф
	PlanExpiry          *time.Time `json:"plan_expiry,omitempty"`           // Дата истечения тарифа
	ConnectionsMade     int        `json:"connections_made"`                // Счётчик израсходованных связей
}

// ProfileSummary публичная карточка пользователя для списков.
type ProfileSummary struct {
	UID        string `json:"id"`
	Name       string `json:"name"`
	ProfilePic string `json:"profile_pic,omitempty"`
	Age        int    `json:"age,omitempty"`
	City       string `json:"city,omitempty"`
}

// UnknownUserName подставляется, если строка собеседника не найдена.
const UnknownUserName = "Unknown User"
