package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/club-auth/internal/models"
	"github.com/pribylovaa/club-auth/internal/oauth"
	"github.com/pribylovaa/club-auth/internal/pkg/log"
	"github.com/pribylovaa/club-auth/internal/pkg/redact"
	"github.com/pribylovaa/club-auth/internal/storage"
	"github.com/pribylovaa/club-auth/internal/token"
)

// maxNicknameLen — ограничение длины никнейма в рунах.
const maxNicknameLen = 32

// ErrInvalidNickname — никнейм пустой или слишком длинный. Транспорт: HTTP 400.
var ErrInvalidNickname = errors.New("invalid nickname")

// Login находит или создаёт локальный аккаунт по проверенному профилю и выпускает пару токенов.
// isNewAccount=true для только что созданного или восстановленного аккаунта.
func (s *Service) Login(ctx context.Context, profile *models.ExternalProfile) (*models.TokenPair, *models.User, bool, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	if profile == nil || strings.TrimSpace(profile.Subject) == "" {
		return nil, nil, false, fmt.Errorf("%s: %w", op, ErrIdentityRejected)
	}

	now := s.now()

	user, isNew, err := s.resolveUser(ctx, profile, "", now)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuePair(ctx, user, now)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("login_succeeded",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.Bool("new_account", isNew),
	)

	return pair, user, isNew, nil
}

// LoginWithCode обменивает код провайдера на профиль и выполняет Login.
func (s *Service) LoginWithCode(ctx context.Context, code string) (*models.TokenPair, *models.User, bool, error) {
	const op = "service.auth.LoginWithCode"

	profile, err := s.exchange(ctx, code)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%s: %w", op, err)
	}

	return s.Login(ctx, profile)
}

// Signup явно регистрирует аккаунт с выбранным никнеймом.
// Активный аккаунт для субъекта — ErrAlreadyRegistered; удалённый восстанавливается.
func (s *Service) Signup(ctx context.Context, profile *models.ExternalProfile, nickname string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.Signup"

	if profile == nil || strings.TrimSpace(profile.Subject) == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrIdentityRejected)
	}

	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = strings.TrimSpace(profile.Nickname)
	}
	if nickname == "" || len([]rune(nickname)) > maxNicknameLen {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidNickname)
	}

	existing, err := s.storage.UserBySubject(ctx, profile.Subject)
	switch {
	case err == nil && existing.Active():
		return nil, nil, fmt.Errorf("%s: %w", op, ErrAlreadyRegistered)
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()

	user, _, err := s.resolveUser(ctx, profile, nickname, now)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuePair(ctx, user, now)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("signup_succeeded",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return pair, user, nil
}

// SignupWithCode обменивает код провайдера на профиль и выполняет Signup.
func (s *Service) SignupWithCode(ctx context.Context, code, nickname string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.SignupWithCode"

	profile, err := s.exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.Signup(ctx, profile, nickname)
}

// Logout отзывает предъявленный refresh-токен пользователя с TTL = остаток его срока.
// Сбой записи в хранилище логируется, выход всё равно считается успешным.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	const op = "service.auth.Logout"

	user, err := s.activeUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	claims, err := s.ownedRefresh(user, refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.revoke(ctx, refreshToken, claims.Remaining(s.now()))

	log.From(ctx).Info("logout_succeeded",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return nil
}

// RevokeAll отзывает все выпущенные до текущего момента токены пользователя
// ("выйти на всех устройствах"). Здесь сбой хранилища возвращается вызывающему.
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	const op = "service.auth.RevokeAll"

	user, err := s.activeUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.revokeSubject(ctx, user.Subject, s.now()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("revoke_all_succeeded",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return nil
}

// CancelAccount мягко удаляет аккаунт, отзывает предъявленный refresh
// и ставит отметку субъекта. Пустой refreshToken допустим.
func (s *Service) CancelAccount(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	const op = "service.auth.CancelAccount"

	lg := log.From(ctx)

	user, err := s.activeUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var claims token.Claims
	if refreshToken != "" {
		claims, err = s.ownedRefresh(user, refreshToken)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	now := s.now()

	if err := s.storage.SoftDeleteUser(ctx, user.ID, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if refreshToken != "" {
		s.revoke(ctx, refreshToken, claims.Remaining(now))
	}

	if err := s.revokeSubject(ctx, user.Subject, now); err != nil {
		lg.Error("cancel_account_subject_revoke_failed",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
			slog.String("err", err.Error()),
		)
	}

	lg.Info("account_cancelled",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return nil
}

// CurrentUser возвращает активный аккаунт за проверенным субъектом.
func (s *Service) CurrentUser(ctx context.Context, subject string) (*models.User, error) {
	const op = "service.auth.CurrentUser"

	user, err := s.activeUserBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// exchange обращается к провайдеру идентичности.
func (s *Service) exchange(ctx context.Context, code string) (*models.ExternalProfile, error) {
	const op = "service.auth.exchange"

	lg := log.From(ctx)

	if s.idp == nil {
		lg.Error("identity_provider_not_configured", slog.String("op", op))
		return nil, fmt.Errorf("%s: %w", op, ErrIdentityRejected)
	}

	profile, err := s.idp.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrRejected) {
			lg.Warn("identity_rejected",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrIdentityRejected)
		}

		lg.Error("identity_provider_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
	}

	return profile, nil
}

// resolveUser находит аккаунт по субъекту, восстанавливает удалённый или создаёт новый.
func (s *Service) resolveUser(ctx context.Context, profile *models.ExternalProfile, nickname string, now time.Time) (*models.User, bool, error) {
	const op = "service.auth.resolveUser"

	lg := log.From(ctx)

	user, err := s.storage.UserBySubject(ctx, profile.Subject)
	if err == nil {
		if user.Active() {
			return user, false, nil
		}

		if err := s.storage.RestoreUser(ctx, user.ID, now); err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}

		user.DeletedAt = nil
		user.UpdatedAt = now
		lg.Info("account_restored",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return user, true, nil
	}

	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if nickname == "" {
		nickname = profile.Nickname
	}

	user = &models.User{
		ID:              uuid.New(),
		Subject:         profile.Subject,
		Email:           profile.Email,
		Nickname:        nickname,
		ProfileImageURL: profile.ProfileImageURL,
		Role:            models.RoleUser,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if !errors.Is(err, storage.ErrAlreadyExists) {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}

		// Параллельный вход того же субъекта уже создал аккаунт.
		existing, getErr := s.storage.UserBySubject(ctx, profile.Subject)
		if getErr != nil {
			return nil, false, fmt.Errorf("%s: %w", op, getErr)
		}

		return existing, false, nil
	}

	lg.Info("account_created",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("subject", redact.Subject(user.Subject)),
	)

	return user, true, nil
}

func (s *Service) activeUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "service.auth.activeUserByID"

	user, err := s.storage.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.Active() {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return user, nil
}

func (s *Service) activeUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	const op = "service.auth.activeUserBySubject"

	user, err := s.storage.UserBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.Active() {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return user, nil
}

// ownedRefresh разбирает refresh-токен и проверяет, что он выпущен для user.
// Срок и отзыв не проверяются: отзыв истёкшего токена — no-op.
func (s *Service) ownedRefresh(user *models.User, raw string) (token.Claims, error) {
	claims, err := s.codec.Parse(raw)
	if err != nil || claims.Kind != token.KindRefresh || claims.Subject != user.Subject {
		return token.Claims{}, ErrMalformedCredential
	}

	return claims, nil
}

// revokeSubject ставит отметку субъекта на окно refresh: позже все старые токены мертвы по сроку.
func (s *Service) revokeSubject(ctx context.Context, subject string, at time.Time) error {
	const op = "service.auth.revokeSubject"

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.blacklist.SetRevokedBefore(sctx, subject, at, s.codec.RefreshWindow()); err != nil {
		s.metrics.Revocation(false)
		return fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
	}

	s.metrics.Revocation(true)
	return nil
}

func (s *Service) mintAccess(ctx context.Context, user *models.User, now time.Time) (string, error) {
	const op = "service.auth.mintAccess"

	access, err := s.codec.MintAccess(user.Subject, user.Role, now)
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.TokenIssued(string(token.KindAccess))
	return access, nil
}

// issuePair выпускает новую пару access+refresh.
func (s *Service) issuePair(ctx context.Context, user *models.User, now time.Time) (*models.TokenPair, error) {
	const op = "service.auth.issuePair"

	access, err := s.mintAccess(ctx, user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.codec.MintRefresh(user.Subject, now)
	if err != nil {
		log.From(ctx).Error("refresh_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.TokenIssued(string(token.KindRefresh))

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.codec.AccessWindow()),
		RefreshExpiresAt: now.Add(s.codec.RefreshWindow()),
	}, nil
}
