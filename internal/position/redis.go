package position

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"SignalSentinel/internal/model"
)

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr      string // e.g. "localhost:6379"
	Password  string
	DB        int
	KeyPrefix string // defaults to "sentinel:position"
}

// RedisStore keeps one string key per instrument holding the JSON record.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "sentinel:position"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(instrument string) string { return s.prefix + ":" + instrument }

func (s *RedisStore) Load(ctx context.Context, instrument string) (model.PositionState, bool, error) {
	data, err := s.client.Get(ctx, s.key(instrument)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.PositionState{}, false, nil
	}
	if err != nil {
		return model.PositionState{}, false, transient("redis get "+instrument, err)
	}
	state, err := decodeState(instrument, data)
	return state, true, err
}

func (s *RedisStore) Save(ctx context.Context, instrument string, state model.PositionState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(instrument), data, 0).Err(); err != nil {
		return transient("redis set "+instrument, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, instrument string) error {
	if err := s.client.Del(ctx, s.key(instrument)).Err(); err != nil {
		return transient("redis del "+instrument, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) (map[string]model.PositionState, error) {
	out := make(map[string]model.PositionState)
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+":*", 100).Result()
		if err != nil {
			return nil, transient("redis scan", err)
		}
		for _, k := range keys {
			data, err := s.client.Get(ctx, k).Bytes()
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if err != nil {
				return nil, transient("redis get "+k, err)
			}
			instrument := strings.TrimPrefix(k, s.prefix+":")
			if state, err := decodeState(instrument, data); err == nil {
				out[instrument] = state
			}
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
