package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/club-auth/internal/models"
	"github.com/pribylovaa/club-auth/internal/pkg/log"
	"github.com/pribylovaa/club-auth/internal/service"
	"github.com/pribylovaa/club-auth/internal/token"
	apierrors "github.com/pribylovaa/club-auth/internal/transport/http/errors"
)

// Authenticator — то, что нужно мидлвару от сервисного слоя.
type Authenticator interface {
	Validate(ctx context.Context, accessToken string) (token.Claims, error)
	CurrentUser(ctx context.Context, subject string) (*models.User, error)
}

// Principal — проверенный пользователь запроса.
type Principal struct {
	User   *models.User
	Claims token.Claims
}

type principalKey struct{}

// Authenticate требует заголовок "Authorization: Bearer <access>".
// Токен проверяется сервисом (подпись, срок, отзыв), затем загружается
// активный аккаунт. Успех кладёт Principal в контекст; любой отказ
// пишется унифицированной ошибкой (401 или 503 при недоступном хранилище).
func Authenticate(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "transport.http.middleware.Authenticate"

			ctx := r.Context()
			lg := log.From(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				lg.Debug("bearer_missing", slog.String("op", op))
				apierrors.WriteError(w, r, service.ErrMalformedCredential)
				return
			}

			claims, err := a.Validate(ctx, raw)
			if err != nil {
				lg.Info("access_rejected",
					slog.String("op", op),
					slog.String("err", err.Error()),
				)
				apierrors.WriteError(w, r, err)
				return
			}

			user, err := a.CurrentUser(ctx, claims.Subject)
			if err != nil {
				lg.Info("principal_lookup_failed",
					slog.String("op", op),
					slog.String("err", err.Error()),
				)
				apierrors.WriteError(w, r, err)
				return
			}

			ctx = log.With(ctx, slog.String("user_id", user.ID.String()))
			ctx = context.WithValue(ctx, principalKey{}, Principal{User: user, Claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom возвращает пользователя, положенного Authenticate.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.User != nil
}

// BearerToken извлекает токен из заголовка Authorization.
// Схема сравнивается без учёта регистра.
func BearerToken(r *http.Request) (string, bool) {
	const prefix = "bearer "

	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}

	raw := strings.TrimSpace(auth[len(prefix):])
	return raw, raw != ""
}
