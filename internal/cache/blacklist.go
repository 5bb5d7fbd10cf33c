// cache содержит хранилище отозванных токенов (blacklist) с TTL.
//
// Ключ записи — "<prefix>:<sha256-hex>" от сырого токена; запись живёт
// ровно столько, сколько отозванный токен оставался бы действительным,
// после чего токен мёртв по сроку и запись не нужна.
//
// Помимо отдельных токенов хранится "водяная отметка" субъекта (миллисекунды):
// все его токены, выпущенные раньше отметки, считаются отозванными.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultPrefix — пространство имён ключей по умолчанию.
const DefaultPrefix = "blacklist"

// ErrClosed — операция над закрытым хранилищем.
var ErrClosed = errors.New("blacklist is closed")

// Blacklist — контракт хранилища отозванных токенов.
// Реализации безопасны для конкурентного использования.
//
//go:generate mockgen -destination=../../mocks/mock_blacklist.go -package=mocks github.com/pribylovaa/club-auth/internal/cache Blacklist
type Blacklist interface {
	// Put добавляет (или перезаписывает) отпечаток с TTL. ttl <= 0 — no-op.
	Put(ctx context.Context, fingerprint string, ttl time.Duration) error
	// PutIfAbsent добавляет отпечаток, только если его ещё нет.
	// Возвращает false, если запись уже существовала. ttl <= 0 — no-op, (false, nil).
	PutIfAbsent(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)
	// Contains сообщает, отозван ли отпечаток.
	Contains(ctx context.Context, fingerprint string) (bool, error)
	// SetRevokedBefore ставит отметку субъекта: токены, выпущенные раньше at, отозваны.
	// Более ранняя отметка не затирает более позднюю.
	SetRevokedBefore(ctx context.Context, subject string, at time.Time, ttl time.Duration) error
	// RevokedBefore возвращает отметку субъекта и признак её наличия.
	RevokedBefore(ctx context.Context, subject string) (time.Time, bool, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	// Close освобождает ресурсы.
	Close() error
}

// Fingerprint — SHA-256 сырого токена в нижнем hex (64 символа).
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return keyspace{prefix: prefix}
}

func (k keyspace) token(fingerprint string) string { return k.prefix + ":" + fingerprint }

func (k keyspace) subject(sub string) string { return k.prefix + ":subject:" + sub }
