package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryBlacklist — реализация в памяти процесса для одного инстанса и тестов.
// Просроченные записи не видны сразу, а физически удаляются janitor'ом
// go-cache раз в cleanupInterval.
type memoryBlacklist struct {
	c      *gocache.Cache
	keys   keyspace
	mu     sync.Mutex // сериализует read-modify-write отметок субъекта
	closed atomic.Bool
}

// NewMemoryBlacklist создаёт blacklist в памяти.
// cleanupInterval <= 0 отключает фоновую очистку.
func NewMemoryBlacklist(prefix string, cleanupInterval time.Duration) Blacklist {
	return &memoryBlacklist{
		c:    gocache.New(gocache.NoExpiration, cleanupInterval),
		keys: newKeyspace(prefix),
	}
}

func (b *memoryBlacklist) Put(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if b.closed.Load() {
		return ErrClosed
	}

	if ttl <= 0 {
		return nil
	}

	b.c.Set(b.keys.token(fingerprint), struct{}{}, ttl)
	return nil
}

func (b *memoryBlacklist) PutIfAbsent(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	if ttl <= 0 {
		return false, nil
	}

	// Add атомарен: ошибка означает, что живая запись уже есть.
	if err := b.c.Add(b.keys.token(fingerprint), struct{}{}, ttl); err != nil {
		return false, nil
	}

	return true, nil
}

func (b *memoryBlacklist) Contains(ctx context.Context, fingerprint string) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	_, ok := b.c.Get(b.keys.token(fingerprint))
	return ok, nil
}

func (b *memoryBlacklist) SetRevokedBefore(ctx context.Context, subject string, at time.Time, ttl time.Duration) error {
	if b.closed.Load() {
		return ErrClosed
	}

	if ttl <= 0 {
		return nil
	}

	key := b.keys.subject(subject)
	at = at.UTC().Truncate(time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()

	if v, ok := b.c.Get(key); ok {
		if cur, _ := v.(time.Time); !cur.Before(at) {
			at = cur
		}
	}

	b.c.Set(key, at, ttl)
	return nil
}

func (b *memoryBlacklist) RevokedBefore(ctx context.Context, subject string) (time.Time, bool, error) {
	if b.closed.Load() {
		return time.Time{}, false, ErrClosed
	}

	v, ok := b.c.Get(b.keys.subject(subject))
	if !ok {
		return time.Time{}, false, nil
	}

	at, ok := v.(time.Time)
	return at, ok, nil
}

func (b *memoryBlacklist) Ping(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}

	return nil
}

func (b *memoryBlacklist) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.c.Flush()
	return nil
}
