package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	redisdb "github.com/octabyte/sitemon/db/redis"
	"github.com/octabyte/sitemon/utils"
)

// RedisStorage keeps the state under one Redis key and the cookies under
// <key>:cookies, so several processes of the same installation share a
// session.
type RedisStorage struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStorage uses key (DefaultKey when empty). A zero ttl never expires.
func NewRedisStorage(client *redis.Client, key string, ttl time.Duration) *RedisStorage {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStorage{client: client, key: key, ttl: ttl}
}

func (r *RedisStorage) Load(ctx context.Context) (State, error) {
	data, found, err := redisdb.Get(ctx, r.client, r.key)
	if err != nil {
		return State{}, fmt.Errorf("load %s: %w", r.key, err)
	}
	if !found {
		return State{}, nil
	}

	var state State
	if err := utils.BytesToStruct(data, &state); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return state, nil
}

func (r *RedisStorage) Save(ctx context.Context, state State) error {
	data, err := utils.StructToBytes(state)
	if err != nil {
		return err
	}
	if err := redisdb.Set(ctx, r.client, r.key, data, r.ttl); err != nil {
		return fmt.Errorf("save %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := redisdb.Del(ctx, r.client, r.key); err != nil {
		return fmt.Errorf("clear %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStorage) Exists(ctx context.Context) (bool, error) {
	found, err := redisdb.Exists(ctx, r.client, r.key)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", r.key, err)
	}
	return found, nil
}

func (r *RedisStorage) cookiesKey() string {
	return r.key + ":cookies"
}

func (r *RedisStorage) LoadCookies(ctx context.Context) ([]Cookie, error) {
	data, found, err := redisdb.Get(ctx, r.client, r.cookiesKey())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", r.cookiesKey(), err)
	}
	if !found {
		return nil, nil
	}

	var file cookieFile
	if err := utils.BytesToStruct(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return file.Cookies, nil
}

// SaveCookies stores the cookies without the state ttl; expired cookies are
// dropped by the jar itself.
func (r *RedisStorage) SaveCookies(ctx context.Context, cookies []Cookie) error {
	data, err := utils.StructToBytes(cookieFile{Cookies: cookies})
	if err != nil {
		return err
	}
	if err := redisdb.Set(ctx, r.client, r.cookiesKey(), data, 0); err != nil {
		return fmt.Errorf("save %s: %w", r.cookiesKey(), err)
	}
	return nil
}
