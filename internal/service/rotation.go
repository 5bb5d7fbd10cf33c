package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/club-auth/internal/cache"
	"github.com/pribylovaa/club-auth/internal/metrics"
	"github.com/pribylovaa/club-auth/internal/models"
	"github.com/pribylovaa/club-auth/internal/pkg/log"
	"github.com/pribylovaa/club-auth/internal/pkg/redact"
	"github.com/pribylovaa/club-auth/internal/token"
)

// RotationState — состояние предъявленного refresh-токена.
type RotationState int

const (
	// StateInvalid — не разбирается, не тот вид, истёк или отозван.
	StateInvalid RotationState = iota
	// StateFresh — остаток срока больше порога перевыпуска.
	StateFresh
	// StateStale — 0 < остаток <= порога.
	StateStale
)

func (st RotationState) String() string {
	switch st {
	case StateFresh:
		return metrics.RotationFresh
	case StateStale:
		return metrics.RotationStale
	default:
		return metrics.RotationInvalid
	}
}

// classify относит остаток срока к состоянию; порог сравнивается напрямую с exp - now.
func classify(claims token.Claims, now time.Time, threshold time.Duration) RotationState {
	remaining := claims.Remaining(now)

	switch {
	case remaining <= 0:
		return StateInvalid
	case remaining > threshold:
		return StateFresh
	default:
		return StateStale
	}
}

// Refresh выпускает новый access-токен по refresh-токену.
//
// Свежий refresh возвращается как есть (rotated=false). Для устаревшего
// выпускается новая пара на полное окно, затем старый отзывается с TTL,
// равным остатку его срока. Если выпуск не удался, старый остаётся в силе.
// В атомарном режиме из конкурентных ротаций одного токена успешна одна,
// остальные получают ErrRevokedCredential.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, bool, error) {
	const op = "service.rotation.Refresh"

	lg := log.From(ctx)
	now := s.now()

	claims, err := s.checkCredential(ctx, refreshToken, now)
	if err != nil {
		s.metrics.Rotation(metrics.RotationInvalid)
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if claims.Kind != token.KindRefresh {
		s.metrics.Rotation(metrics.RotationInvalid)
		return nil, false, fmt.Errorf("%s: %w", op, ErrMalformedCredential)
	}

	user, err := s.activeUserBySubject(ctx, claims.Subject)
	if err != nil {
		s.metrics.Rotation(metrics.RotationInvalid)
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	state := classify(claims, now, s.cfg.ReissueThreshold)
	lg.Debug("refresh_classified",
		slog.String("op", op),
		slog.String("state", state.String()),
	)

	switch state {
	case StateFresh:
		access, err := s.mintAccess(ctx, user, now)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}

		s.metrics.Rotation(metrics.RotationFresh)
		return &models.TokenPair{
			AccessToken:      access,
			RefreshToken:     refreshToken,
			AccessExpiresAt:  now.Add(s.codec.AccessWindow()),
			RefreshExpiresAt: claims.ExpiresAt,
		}, false, nil

	case StateStale:
		// Старый refresh отзывается только после выпуска замены.
		pair, err := s.issuePair(ctx, user, now)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}

		if err := s.retire(ctx, refreshToken, claims.Remaining(now)); err != nil {
			s.metrics.Rotation(metrics.RotationLostRace)
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}

		lg.Info("refresh_rotated",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		s.metrics.Rotation(metrics.RotationStale)
		return pair, true, nil

	default:
		s.metrics.Rotation(metrics.RotationInvalid)
		return nil, false, fmt.Errorf("%s: %w", op, ErrExpiredCredential)
	}
}

// retire отзывает устаревший refresh при ротации.
// Ошибка записи логируется и не прерывает ротацию; в атомарном режиме
// уже существующая запись означает проигранную гонку.
func (s *Service) retire(ctx context.Context, raw string, ttl time.Duration) error {
	const op = "service.rotation.retire"

	if !s.cfg.AtomicRotation() {
		s.revoke(ctx, raw, ttl)
		return nil
	}

	lg := log.From(ctx)
	fp := cache.Fingerprint(raw)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	added, err := s.blacklist.PutIfAbsent(sctx, fp, ttl)
	if err != nil {
		s.metrics.Revocation(false)
		lg.Error("revocation_store_put_failed",
			slog.String("op", op),
			slog.String("fp", redact.Fingerprint(fp)),
			slog.String("err", err.Error()),
		)
		return nil
	}

	if !added {
		lg.Warn("refresh_rotation_lost_race",
			slog.String("op", op),
			slog.String("fp", redact.Fingerprint(fp)),
		)
		return fmt.Errorf("%s: %w", op, ErrRevokedCredential)
	}

	s.metrics.Revocation(true)
	return nil
}

// revoke кладёт отпечаток в blacklist с TTL = остаток срока.
// ttl <= 0 — токен уже мёртв по сроку, запись не нужна.
// Ошибка хранилища логируется и проглатывается.
func (s *Service) revoke(ctx context.Context, raw string, ttl time.Duration) {
	const op = "service.rotation.revoke"

	if ttl <= 0 {
		return
	}

	fp := cache.Fingerprint(raw)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.blacklist.Put(sctx, fp, ttl); err != nil {
		s.metrics.Revocation(false)
		log.From(ctx).Error("revocation_store_put_failed",
			slog.String("op", op),
			slog.String("fp", redact.Fingerprint(fp)),
			slog.String("err", err.Error()),
		)
		return
	}

	s.metrics.Revocation(true)
}

