// token выпускает и разбирает подписанные bearer-токены сессии (JWT, HS256).
//
// Токен бывает двух видов: access (короткое окно, несёт роль) и refresh
// (длинное окно, без роли). Вид записан в токене явно, в claim "kind".
// Codec не проверяет срок действия и отзыв: это делает вызывающий код.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pribylovaa/club-auth/internal/config"
)

// Kind — вид токена.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// RolePrefix — обязательный префикс роли в access-токене.
const RolePrefix = "ROLE_"

var (
	// ErrMalformed — подпись не сошлась, алгоритм не HS256, структура не
	// декодируется или набор claims не соответствует виду токена.
	ErrMalformed = errors.New("malformed token")

	// ErrEmptySecret — Codec нельзя построить без секрета подписи.
	ErrEmptySecret = errors.New("empty signing secret")

	// ErrEmptyRole — access-токен всегда несёт роль.
	ErrEmptyRole = errors.New("empty role")
)

// Claims — разобранное содержимое токена.
type Claims struct {
	Subject   string
	Role      string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
	// MintedAt — момент выпуска с точностью до миллисекунды; iat совпадает с ним до секунды.
	MintedAt  time.Time
}

// Remaining возвращает остаток срока действия относительно now (может быть <= 0).
func (c Claims) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

type sessionClaims struct {
	Role     string `json:"role,omitempty"`
	Kind     Kind   `json:"kind"`
	MintedMs int64  `json:"iat_ms"`
	jwt.RegisteredClaims
}

// Codec безопасен для конкурентного использования: после создания состояние не меняется.
type Codec struct {
	secret        []byte
	accessWindow  time.Duration
	refreshWindow time.Duration
}

// NewCodec создаёт Codec из конфигурации.
func NewCodec(cfg config.AuthConfig) (*Codec, error) {
	const op = "token.codec.NewCodec"

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}

	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("%s: non-positive token window", op)
	}

	return &Codec{
		secret:        []byte(cfg.JWTSecret),
		accessWindow:  cfg.AccessTokenTTL,
		refreshWindow: cfg.RefreshTokenTTL,
	}, nil
}

// AccessWindow — время жизни access-токена.
func (c *Codec) AccessWindow() time.Duration { return c.accessWindow }

// RefreshWindow — время жизни refresh-токена.
func (c *Codec) RefreshWindow() time.Duration { return c.refreshWindow }

// MintAccess выпускает access-токен: iat = now, exp = now + окно access.
// Роль приводится к виду ROLE_<NAME>.
func (c *Codec) MintAccess(subject, role string, now time.Time) (string, error) {
	const op = "token.codec.MintAccess"

	role = NormalizeRole(role)
	if role == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyRole)
	}

	signed, err := c.sign(subject, role, KindAccess, now, c.accessWindow)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// MintRefresh выпускает refresh-токен без роли: exp = now + окно refresh.
func (c *Codec) MintRefresh(subject string, now time.Time) (string, error) {
	const op = "token.codec.MintRefresh"

	signed, err := c.sign(subject, "", KindRefresh, now, c.refreshWindow)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func (c *Codec) sign(subject, role string, kind Kind, now time.Time, window time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}

	// iat и exp — секунды, iat_ms — миллисекунды того же момента.
	// Одинаковые входы и момент дают одинаковый токен.
	minted := now.Truncate(time.Millisecond)
	now = now.Truncate(time.Second)

	claims := sessionClaims{
		Role:     role,
		Kind:     kind,
		MintedMs: minted.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(window)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Parse проверяет подпись и структуру токена, срок действия не проверяется.
func (c *Codec) Parse(raw string) (Claims, error) {
	const op = "token.codec.Parse"

	var sc sessionClaims

	tok, err := jwt.ParseWithClaims(raw, &sc,
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !tok.Valid {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	if sc.Subject == "" || sc.IssuedAt == nil || sc.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	minted := time.UnixMilli(sc.MintedMs).UTC()
	if !minted.Truncate(time.Second).Equal(sc.IssuedAt.Time) {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	switch sc.Kind {
	case KindAccess:
		if !strings.HasPrefix(sc.Role, RolePrefix) {
			return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformed)
		}
	case KindRefresh:
		if sc.Role != "" {
			return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformed)
		}
	default:
		return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	return Claims{
		Subject:   sc.Subject,
		Role:      sc.Role,
		Kind:      sc.Kind,
		IssuedAt:  sc.IssuedAt.Time.UTC(),
		ExpiresAt: sc.ExpiresAt.Time.UTC(),
		MintedAt:  minted,
	}, nil
}

// IsAccessKind — true, если токен разбирается и его вид access.
func (c *Codec) IsAccessKind(raw string) bool {
	claims, err := c.Parse(raw)
	return err == nil && claims.Kind == KindAccess
}

// NormalizeRole приводит имя роли к виду ROLE_<NAME>. Пустая роль остаётся пустой.
func NormalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" || role == RolePrefix {
		return ""
	}

	if strings.HasPrefix(role, RolePrefix) {
		return role
	}

	return RolePrefix + role
}
