package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/club-auth/internal/models"
	"github.com/pribylovaa/club-auth/internal/storage"
)

const userColumns = `id, subject, email, nickname, profile_image_url, role, created_at, updated_at, deleted_at`

// SaveUser создает нового пользователя в БД.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users(` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Subject,
		user.Email,
		user.Nickname,
		user.ProfileImageURL,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
		user.DeletedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserBySubject находит пользователя по внешней идентичности.
func (s *Storage) UserBySubject(ctx context.Context, subject string) (*models.User, error) {
	const op = "storage.postgres.UserBySubject"

	query := `SELECT ` + userColumns + ` FROM users WHERE subject = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, subject))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// SoftDeleteUser помечает аккаунт удалённым. Повторное удаление не сдвигает deleted_at.
func (s *Storage) SoftDeleteUser(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "storage.postgres.SoftDeleteUser"

	query := `
		UPDATE users
		SET deleted_at = COALESCE(deleted_at, $2), updated_at = $2
		WHERE id = $1
	`

	return execOne(ctx, s, op, query, id, at)
}

// RestoreUser снимает пометку удаления.
func (s *Storage) RestoreUser(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "storage.postgres.RestoreUser"

	query := `
		UPDATE users
		SET deleted_at = NULL, updated_at = $2
		WHERE id = $1
	`

	return execOne(ctx, s, op, query, id, at)
}

func execOne(ctx context.Context, s *Storage, op, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Subject,
		&user.Email,
		&user.Nickname,
		&user.ProfileImageURL,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return &user, nil
}
