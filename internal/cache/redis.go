package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisBlacklist struct {
	rdb  redis.UniversalClient
	keys keyspace
}

// NewRedisBlacklist создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется DefaultPrefix.
func NewRedisBlacklist(ctx context.Context, redisURL, prefix string) (Blacklist, error) {
	const op = "cache.redis.NewRedisBlacklist"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewRedisBlacklistFromClient(rdb, prefix), nil
}

// NewRedisBlacklistFromClient оборачивает уже созданный клиент.
func NewRedisBlacklistFromClient(rdb redis.UniversalClient, prefix string) Blacklist {
	return &redisBlacklist{rdb: rdb, keys: newKeyspace(prefix)}
}

// Значение записи не используется, важен только факт наличия ключа.
const revokedMarker = "1"

func (b *redisBlacklist) Put(ctx context.Context, fingerprint string, ttl time.Duration) error {
	const op = "cache.redis.Put"

	if ttl <= 0 {
		return nil
	}

	if err := b.rdb.Set(ctx, b.keys.token(fingerprint), revokedMarker, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (b *redisBlacklist) PutIfAbsent(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	const op = "cache.redis.PutIfAbsent"

	if ttl <= 0 {
		return false, nil
	}

	ok, err := b.rdb.SetNX(ctx, b.keys.token(fingerprint), revokedMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return ok, nil
}

func (b *redisBlacklist) Contains(ctx context.Context, fingerprint string) (bool, error) {
	const op = "cache.redis.Contains"

	n, err := b.rdb.Exists(ctx, b.keys.token(fingerprint)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

// Отметка хранится как unix-миллисекунды; более ранняя отметка не затирает более позднюю.
var setMaxScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

func (b *redisBlacklist) SetRevokedBefore(ctx context.Context, subject string, at time.Time, ttl time.Duration) error {
	const op = "cache.redis.SetRevokedBefore"

	if ttl <= 0 {
		return nil
	}

	err := setMaxScript.Run(ctx, b.rdb,
		[]string{b.keys.subject(subject)},
		at.UnixMilli(), ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (b *redisBlacklist) RevokedBefore(ctx context.Context, subject string) (time.Time, bool, error) {
	const op = "cache.redis.RevokedBefore"

	v, err := b.rdb.Get(ctx, b.keys.subject(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", op, err)
	}

	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return time.UnixMilli(ms).UTC(), true, nil
}

func (b *redisBlacklist) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *redisBlacklist) Close() error { return b.rdb.Close() }
