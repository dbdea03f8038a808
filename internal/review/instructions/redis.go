package instructions

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/AICC2024/video-review/internal/platform/logger"
)

const DefaultRedisKey = "review:instructions"

// RedisStore keeps modes as fields of one hash so every replica sees edits.
type RedisStore struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	key string
}

func NewRedisStore(log *logger.Logger, rdb goredis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{log: log.With("component", "InstructionRedisStore"), rdb: rdb, key: key}
}

func (s *RedisStore) Get(ctx context.Context, mode string) (string, error) {
	mode = NormalizeMode(mode)
	if mode == "" {
		return "", ErrEmptyMode
	}
	v, err := s.rdb.HGet(ctx, s.key, mode).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, mode, content string) error {
	mode = NormalizeMode(mode)
	if mode == "" {
		return ErrEmptyMode
	}
	if err := s.rdb.HSet(ctx, s.key, mode, content).Err(); err != nil {
		return err
	}
	s.log.Info("instruction saved", "mode", mode, "chars", len(content))
	return nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, s.key).Result()
}
