package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const modelCacheKey = "triage:gemini:models"

// MemoryCache keeps the model list in process for ttl.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	models  []ModelInfo
	expires time.Time
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (m *MemoryCache) Load(_ context.Context) ([]ModelInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.models == nil || !m.now().Before(m.expires) {
		return nil, false
	}
	return m.models, true
}

func (m *MemoryCache) Store(_ context.Context, models []ModelInfo) {
	if m.ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = append([]ModelInfo(nil), models...)
	m.expires = m.now().Add(m.ttl)
}

// RedisCache shares the model list between server instances. Redis errors
// are logged and treated as misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func (r *RedisCache) Load(ctx context.Context) ([]ModelInfo, bool) {
	data, err := r.client.Get(ctx, modelCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("model cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var models []ModelInfo
	if err := json.Unmarshal(data, &models); err != nil {
		r.log.Warn("model cache entry is corrupt", zap.Error(err))
		return nil, false
	}
	return models, len(models) > 0
}

func (r *RedisCache) Store(ctx context.Context, models []ModelInfo) {
	if r.ttl <= 0 {
		return
	}
	data, err := json.Marshal(models)
	if err != nil {
		r.log.Warn("encode model cache", zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, modelCacheKey, data, r.ttl).Err(); err != nil {
		r.log.Warn("model cache write failed", zap.Error(err))
	}
}
