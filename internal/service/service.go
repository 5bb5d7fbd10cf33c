// service содержит бизнес-логику жизненного цикла сессии:
// вход и регистрацию через внешнего провайдера, выпуск пары токенов,
// проверку токена на каждом запросе, ротацию refresh-токена и отзыв.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования, если потокобезопасны переданные
//     storage.UserStorage и cache.Blacklist.
//   - Ошибки возвращаются и далее маппятся транспортом на HTTP/gRPC-коды
//     (см. комментарии к переменным ошибок ниже). Все ошибки учётных данных
//     и ErrUserNotFound клиент видит одинаково: "invalid or expired session".
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/club-auth/internal/cache"
	"github.com/pribylovaa/club-auth/internal/config"
	"github.com/pribylovaa/club-auth/internal/metrics"
	"github.com/pribylovaa/club-auth/internal/oauth"
	"github.com/pribylovaa/club-auth/internal/storage"
	"github.com/pribylovaa/club-auth/internal/token"
)

var (
	// ErrMalformedCredential — подпись не сошлась, структура не декодируется
	// или вид токена не тот. Транспорт: HTTP 401.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrExpiredCredential — токен корректен, но срок истёк. Транспорт: HTTP 401.
	ErrExpiredCredential = errors.New("expired credential")

	// ErrRevokedCredential — токен корректен и не истёк, но отозван
	// (logout, ротация, отметка субъекта). Транспорт: HTTP 401.
	ErrRevokedCredential = errors.New("revoked credential")

	// ErrUserNotFound — локального аккаунта за субъектом нет или он удалён.
	// Транспорт: HTTP 401.
	ErrUserNotFound = errors.New("user not found")

	// ErrDependencyUnavailable — хранилище отозванных токенов (или провайдер)
	// недоступно, проверку выполнить нельзя. Транспорт: HTTP 503.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrAlreadyRegistered — активный аккаунт для субъекта уже есть. Транспорт: HTTP 409.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrIdentityRejected — провайдер отклонил код или профиль непригоден. Транспорт: HTTP 401.
	ErrIdentityRejected = errors.New("identity rejected")
)

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage   storage.UserStorage
	blacklist cache.Blacklist
	codec     *token.Codec
	cfg       config.AuthConfig

	idp          oauth.IdentityProvider // может быть nil, если провайдер не сконфигурирован
	metrics      *metrics.Metrics       // может быть nil
	storeTimeout time.Duration
	failOpen     bool

	now func() time.Time
}

// New создаёт новый экземпляр Service. Ошибка — только при некорректном cfg.
func New(st storage.UserStorage, bl cache.Blacklist, cfg config.AuthConfig) (*Service, error) {
	const op = "service.New"

	codec, err := token.NewCodec(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.ReissueThreshold <= 0 || cfg.ReissueThreshold >= cfg.RefreshTokenTTL {
		return nil, fmt.Errorf("%s: reissue threshold must be in (0, refresh ttl)", op)
	}

	return &Service{
		storage:   st,
		blacklist: bl,
		codec:     codec,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetIdentityProvider устанавливает внешнего провайдера (опционально).
func (s *Service) SetIdentityProvider(p oauth.IdentityProvider) {
	s.idp = p
}

// SetMetrics устанавливает коллекторы метрик (опционально).
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetStoreTimeout ограничивает один вызов к хранилищу отозванных токенов.
// d <= 0 — без отдельного таймаута.
func (s *Service) SetStoreTimeout(d time.Duration) {
	s.storeTimeout = d
}

// SetFailOpen переключает политику чтения при недоступном хранилище:
// true — токен считается неотозванным, false (по умолчанию) — ErrDependencyUnavailable.
func (s *Service) SetFailOpen(v bool) {
	s.failOpen = v
}

// Codec возвращает кодек токенов (для транспорта: окна cookie/заголовков).
func (s *Service) Codec() *token.Codec { return s.codec }

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, s.storeTimeout)
}
