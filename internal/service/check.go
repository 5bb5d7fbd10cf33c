package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/club-auth/internal/cache"
	"github.com/pribylovaa/club-auth/internal/pkg/log"
	"github.com/pribylovaa/club-auth/internal/pkg/redact"
	"github.com/pribylovaa/club-auth/internal/token"
)

// Причины отказа для метрик и логов.
const (
	reasonMalformed  = "malformed"
	reasonExpired    = "expired"
	reasonRevoked    = "revoked"
	reasonDependency = "dependency"
)

// checkCredential проверяет токен по порядку, до первого отказа:
// разбор и подпись, срок действия, отпечаток в blacklist, отметка субъекта.
// Хранилище только читается.
func (s *Service) checkCredential(ctx context.Context, raw string, now time.Time) (token.Claims, error) {
	const op = "service.check.checkCredential"

	claims, err := s.codec.Parse(raw)
	if err != nil {
		s.metrics.ValidationFailed(reasonMalformed)
		return token.Claims{}, fmt.Errorf("%s: %w", op, ErrMalformedCredential)
	}

	if !now.Before(claims.ExpiresAt) {
		s.metrics.ValidationFailed(reasonExpired)
		return token.Claims{}, fmt.Errorf("%s: %w", op, ErrExpiredCredential)
	}

	revoked, err := s.isRevoked(ctx, raw, claims)
	if err != nil {
		if !s.failOpen {
			s.metrics.ValidationFailed(reasonDependency)
			return token.Claims{}, fmt.Errorf("%s: %w", op, err)
		}

		log.From(ctx).Warn("revocation_check_failed_open",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return claims, nil
	}

	if revoked {
		s.metrics.ValidationFailed(reasonRevoked)
		return token.Claims{}, fmt.Errorf("%s: %w", op, ErrRevokedCredential)
	}

	return claims, nil
}

// isRevoked — отпечаток в blacklist или выпуск строго раньше отметки субъекта.
// Сравнение идёт с точностью до миллисекунды, поэтому вход сразу после
// "выйти везде" даёт рабочую пару.
func (s *Service) isRevoked(ctx context.Context, raw string, claims token.Claims) (bool, error) {
	const op = "service.check.isRevoked"

	lg := log.From(ctx)
	fp := cache.Fingerprint(raw)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	found, err := s.blacklist.Contains(sctx, fp)
	if err != nil {
		lg.Error("revocation_store_read_failed",
			slog.String("op", op),
			slog.String("fp", redact.Fingerprint(fp)),
			slog.String("err", err.Error()),
		)
		return false, fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
	}

	if found {
		lg.Info("credential_revoked",
			slog.String("op", op),
			slog.String("fp", redact.Fingerprint(fp)),
		)
		return true, nil
	}

	before, ok, err := s.blacklist.RevokedBefore(sctx, claims.Subject)
	if err != nil {
		lg.Error("revocation_store_read_failed",
			slog.String("op", op),
			slog.String("subject", redact.Subject(claims.Subject)),
			slog.String("err", err.Error()),
		)
		return false, fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
	}

	if ok && claims.MintedAt.Before(before) {
		lg.Info("credential_revoked_by_subject",
			slog.String("op", op),
			slog.String("subject", redact.Subject(claims.Subject)),
		)
		return true, nil
	}

	return false, nil
}

// Validate проверяет access-токен предъявленный на запросе.
func (s *Service) Validate(ctx context.Context, accessToken string) (token.Claims, error) {
	const op = "service.check.Validate"

	claims, err := s.checkCredential(ctx, accessToken, s.now())
	if err != nil {
		return token.Claims{}, fmt.Errorf("%s: %w", op, err)
	}

	if claims.Kind != token.KindAccess {
		s.metrics.ValidationFailed(reasonMalformed)
		return token.Claims{}, fmt.Errorf("%s: %w", op, ErrMalformedCredential)
	}

	return claims, nil
}

// IsCredentialError — ошибка относится к самому токену или аккаунту за ним.
// Транспорт сводит все такие ошибки к одному ответу.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrExpiredCredential) ||
		errors.Is(err, ErrRevokedCredential) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrIdentityRejected)
}
