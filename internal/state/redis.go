package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps state in Redis so it survives restarts. The state name is a
// string key and the data map a hash, both under fsm:<chat>:<user>.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis connects to addr and checks the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisStore(client), nil
}

func stateKey(key Key) string { return "fsm:" + key.String() + ":state" }
func dataKey(key Key) string  { return "fsm:" + key.String() + ":data" }

func (s *RedisStore) State(ctx context.Context, key Key) (string, error) {
	v, err := s.client.Get(ctx, stateKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get state: %w", err)
	}
	return v, nil
}

func (s *RedisStore) SetState(ctx context.Context, key Key, state string) error {
	var err error
	if state == "" {
		err = s.client.Del(ctx, stateKey(key)).Err()
	} else {
		err = s.client.Set(ctx, stateKey(key), state, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (s *RedisStore) Data(ctx context.Context, key Key) (map[string]string, error) {
	data, err := s.client.HGetAll(ctx, dataKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("get data: %w", err)
	}
	return data, nil
}

func (s *RedisStore) UpdateData(ctx context.Context, key Key, data map[string]string) error {
	if len(data) == 0 {
		return nil
	}
	values := make([]any, 0, len(data)*2)
	for k, v := range data {
		values = append(values, k, v)
	}
	if err := s.client.HSet(ctx, dataKey(key), values...).Err(); err != nil {
		return fmt.Errorf("update data: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, stateKey(key), dataKey(key)).Err(); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
