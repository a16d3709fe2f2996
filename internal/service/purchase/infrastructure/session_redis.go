// internal/service/purchase/infrastructure/session_redis.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"lekker/internal/service/purchase/domain"
)

const sessionKeyPrefix = "purchase:session:"

// RedisSessionStore 把买家会话以 JSON 封皮存进 Redis。
// TTL 让被买家遗忘的购买流程自动过期，过期的会话等同 Idle。
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (domain.SessionState, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Idle{}, nil
		}
		return nil, errors.Wrap(err, "redis get session")
	}
	state, err := domain.UnmarshalSession(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode session %s", sessionID)
	}
	return state, nil
}

func (s *RedisSessionStore) Set(ctx context.Context, sessionID string, state domain.SessionState) error {
	raw, err := domain.MarshalSession(state)
	if err != nil {
		return errors.Wrapf(err, "encode session %s", sessionID)
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sessionID, raw, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set session")
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return errors.Wrap(err, "redis delete session")
	}
	return nil
}
