package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/club-auth/internal/models"
)

var (
	// ErrNotFound — пользователь не найден.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (subject/id).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над локальными аккаунтами.
//
//go:generate mockgen -destination=../../mocks/mock_storage.go -package=mocks github.com/pribylovaa/club-auth/internal/storage Storage
type UserStorage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByID находит пользователя по ID (включая мягко удалённых).
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserBySubject находит пользователя по внешней идентичности (включая мягко удалённых).
	UserBySubject(ctx context.Context, subject string) (*models.User, error)
	// SoftDeleteUser помечает аккаунт удалённым.
	SoftDeleteUser(ctx context.Context, id uuid.UUID, at time.Time) error
	// RestoreUser снимает пометку удаления.
	RestoreUser(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	Ping(ctx context.Context) error
	Close()
}
