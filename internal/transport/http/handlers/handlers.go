// handlers — REST-эндпоинты сессии. Здесь только разбор запроса, вызов
// сервисного слоя и запись ответа; ошибки уходят в apierrors.WriteError.
//
// Access-токен отдаётся в заголовке Authorization ("Bearer <token>"),
// refresh-токен — в HttpOnly-cookie, ограниченной путём /auth.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/club-auth/internal/config"
	"github.com/pribylovaa/club-auth/internal/models"
	apierrors "github.com/pribylovaa/club-auth/internal/transport/http/errors"
	"github.com/pribylovaa/club-auth/internal/transport/http/middleware"
)

// AuthService — операции сервисного слоя, доступные по HTTP.
type AuthService interface {
	middleware.Authenticator

	LoginWithCode(ctx context.Context, code string) (*models.TokenPair, *models.User, bool, error)
	SignupWithCode(ctx context.Context, code, nickname string) (*models.TokenPair, *models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, bool, error)
	Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
	CancelAccount(ctx context.Context, userID uuid.UUID, refreshToken string) error
}

// Handlers агрегирует зависимости эндпоинтов.
type Handlers struct {
	svc    AuthService
	cookie config.CookieConfig
	now    func() time.Time
}

func New(svc AuthService, cookie config.CookieConfig) *Handlers {
	return &Handlers{svc: svc, cookie: cookie, now: time.Now}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err)
	}
	return nil
}
