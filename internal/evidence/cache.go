package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "evidence:"

// RedisCache stores search results in Redis for a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis-backed evidence cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get loads key into dst. It reports false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get evidence: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return true, nil
}

// Set stores v under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set evidence: %w", err)
	}
	return nil
}

// Cache is the storage used by CachedSearch.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// CachedSearch memoizes successful searches. Failures, including quota
// exhaustion, are never cached. Cache errors degrade to a direct search.
type CachedSearch struct {
	next   SearchBackend
	cache  Cache
	logger *slog.Logger
}

// NewCachedSearch wraps next with cache.
func NewCachedSearch(next SearchBackend, cache Cache, logger *slog.Logger) *CachedSearch {
	return &CachedSearch{next: next, cache: cache, logger: logger}
}

func (s *CachedSearch) ReverseImage(ctx context.Context, imageURL string) (*ReverseImageResult, error) {
	key := "rimg:" + digest(imageURL)
	var cached ReverseImageResult
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}
	res, err := s.next.ReverseImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, res)
	return res, nil
}

func (s *CachedSearch) Web(ctx context.Context, query string, num int) ([]SearchResult, error) {
	key := "web:" + strconv.Itoa(num) + ":" + digest(query)
	var cached []SearchResult
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}
	res, err := s.next.Web(ctx, query, num)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, res)
	return res, nil
}

func (s *CachedSearch) lookup(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.WarnContext(ctx, "evidence cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if ok {
		evidenceLookups.WithLabelValues("cache", "hit").Inc()
	}
	return ok
}

func (s *CachedSearch) store(ctx context.Context, key string, v any) {
	if err := s.cache.Set(ctx, key, v); err != nil {
		s.logger.WarnContext(ctx, "evidence cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
