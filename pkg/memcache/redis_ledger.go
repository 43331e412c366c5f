package mem

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger shares the token ledger across instances. Redis expires keys itself,
// so SweepExpired has nothing to do.
type RedisLedger struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisLedger(rdb redis.Cmdable, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "ledger:flow:"
	}
	return &RedisLedger{rdb: rdb, prefix: prefix}
}

func (l *RedisLedger) Put(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return l.rdb.SetNX(ctx, l.prefix+token, now, ttl).Result()
}

func (l *RedisLedger) Get(ctx context.Context, token string) (time.Time, bool, error) {
	val, err := l.rdb.Get(ctx, l.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, true, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (l *RedisLedger) Delete(ctx context.Context, token string) error {
	return l.rdb.Del(ctx, l.prefix+token).Err()
}

func (l *RedisLedger) SweepExpired(context.Context) (int, error) {
	return 0, nil
}

var _ TokenLedger = (*RedisLedger)(nil)

// RedisResetTokens stores recovery tokens in Redis so any instance can redeem them.
type RedisResetTokens struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisResetTokens(rdb redis.Cmdable) *RedisResetTokens {
	return &RedisResetTokens{rdb: rdb, prefix: "reset:"}
}

func (s *RedisResetTokens) Set(ctx context.Context, token string, accountEmail string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.prefix+token, accountEmail, ttl).Err()
}

func (s *RedisResetTokens) Consume(ctx context.Context, token string) (string, error) {
	email, err := s.rdb.GetDel(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return email, err
}

var _ ResetTokenStore = (*RedisResetTokens)(nil)
