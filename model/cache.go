package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"

	relaymodel "github.com/ierezell/ml-infra/relay/model"
)

const resultCacheKeyPrefix = "ml-infra:qgen:result:"

// ResultCache keeps regrouped questions of finished jobs so status reads do
// not hit the object store again. A miss returns ok == false and no error.
type ResultCache interface {
	Get(ctx context.Context, jobID string) (relaymodel.GeneratedQuestions, bool, error)
	Set(ctx context.Context, jobID string, results relaymodel.GeneratedQuestions) error
}

// RedisResultCache stores results as JSON strings with a TTL.
type RedisResultCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisResultCache wraps client.
func NewRedisResultCache(client redis.UniversalClient, ttl time.Duration) *RedisResultCache {
	return &RedisResultCache{client: client, ttl: ttl}
}

func (c *RedisResultCache) Get(ctx context.Context, jobID string) (relaymodel.GeneratedQuestions, bool, error) {
	raw, err := c.client.Get(ctx, resultCacheKeyPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "redis get result of job %s", jobID)
	}

	var results relaymodel.GeneratedQuestions
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, errors.Wrapf(err, "decode cached result of job %s", jobID)
	}
	return results, true, nil
}

func (c *RedisResultCache) Set(ctx context.Context, jobID string, results relaymodel.GeneratedQuestions) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return errors.Wrapf(err, "encode result of job %s", jobID)
	}
	if err := c.client.Set(ctx, resultCacheKeyPrefix+jobID, raw, c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set result of job %s", jobID)
	}
	return nil
}

// MemoryResultCache keeps results in process memory.
type MemoryResultCache struct {
	cache *gocache.Cache
}

// NewMemoryResultCache evicts entries after ttl.
func NewMemoryResultCache(ttl time.Duration) *MemoryResultCache {
	return &MemoryResultCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *MemoryResultCache) Get(_ context.Context, jobID string) (relaymodel.GeneratedQuestions, bool, error) {
	v, ok := c.cache.Get(jobID)
	if !ok {
		return nil, false, nil
	}
	results, ok := v.(relaymodel.GeneratedQuestions)
	if !ok {
		return nil, false, errors.Errorf("unexpected cached type %T for job %s", v, jobID)
	}
	return results, true, nil
}

func (c *MemoryResultCache) Set(_ context.Context, jobID string, results relaymodel.GeneratedQuestions) error {
	c.cache.SetDefault(jobID, results)
	return nil
}
