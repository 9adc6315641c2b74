package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const (
	redisCachePrefix = "offline:cache:"
	redisCacheIndex  = "offline:caches"
)

// RedisStorage keeps one hash per cache, field = sha256(url), plus a set of
// cache names.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage connects and pings the server
func NewRedisStorage(ctx context.Context, addr, password string, db int) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStorage{client: client}, nil
}

func redisCacheKey(cache string) string {
	return redisCachePrefix + cache
}

func (s *RedisStorage) Match(ctx context.Context, cache, url string) (*Entry, error) {
	data, err := s.client.HGet(ctx, redisCacheKey(cache), entryID(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if entry.URL != url {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

func (s *RedisStorage) Put(ctx context.Context, cache string, entry *Entry) error {
	return s.PutAll(ctx, cache, []*Entry{entry})
}

// PutAll writes all entries in one MULTI/EXEC transaction
func (s *RedisStorage) PutAll(ctx context.Context, cache string, entries []*Entry) error {
	fields := make([]interface{}, 0, 2*len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		fields = append(fields, entryID(e.URL), data)
	}
	if len(fields) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisCacheKey(cache), fields...)
		pipe.SAdd(ctx, redisCacheIndex, cache)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (s *RedisStorage) Keys(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, redisCacheIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStorage) Delete(ctx context.Context, cache string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisCacheKey(cache))
		pipe.SRem(ctx, redisCacheIndex, cache)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}

var _ CacheStorage = (*RedisStorage)(nil)
