package models

import (
	"time"

	"github.com/google/uuid"
)

// RoleUser — роль, назначаемая новому аккаунту.
const RoleUser = "ROLE_USER"

// User — локальный аккаунт, привязанный к внешней идентичности (Subject).
//
// DeletedAt != nil — аккаунт мягко удалён: для входа по токенам он
// считается отсутствующим, повторный вход через провайдера его восстанавливает.
type User struct {
	ID              uuid.UUID
	Subject         string
	Email           string
	Nickname        string
	ProfileImageURL string
	Role            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// Active сообщает, что аккаунт не удалён.
func (u *User) Active() bool { return u != nil && u.DeletedAt == nil }

// ExternalProfile — проверенный профиль от провайдера идентичности.
type ExternalProfile struct {
	// Subject — стабильный уникальный идентификатор вида "<provider>:<id>".
	Subject         string
	Email           string
	Nickname        string
	ProfileImageURL string
}
