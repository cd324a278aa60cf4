package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"clinica-medicos/monitoring"
	"clinica-medicos/utils"
)

// ListCacheKey prefixes the cached listings. The live entry is
// ListCacheKey:<generation>, where the generation is read from
// ListGenerationKey and bumped by every invalidation.
const (
	ListCacheKey      = "medicos:list"
	ListGenerationKey = ListCacheKey + ":gen"
)

func listKey(generation int64) string {
	return fmt.Sprintf("%s:%d", ListCacheKey, generation)
}

// InvalidateListCache moves the listing to a new generation. A listing built
// from a read that started before the bump lands under the old generation and
// is never served.
func InvalidateListCache(ctx context.Context, cache utils.RedisClient) error {
	if _, err := cache.IncrementCounter(ctx, ListGenerationKey); err != nil {
		return fmt.Errorf("failed to invalidate medico list cache: %w", err)
	}
	return nil
}

func listGeneration(ctx context.Context, cache utils.RedisClient) (int64, error) {
	raw, err := cache.GetFromCache(ctx, ListGenerationKey)
	if errors.Is(err, utils.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed list cache generation %q: %w", raw, err)
	}
	return gen, nil
}

// CachedRepository serves List from Redis and invalidates the cached listing
// after every successful write. Cache failures fall back to the underlying
// store and are logged.
type CachedRepository struct {
	Repository
	cache  utils.RedisClient
	ttl    time.Duration
	logger *log.Logger
}

func NewCachedRepository(repo Repository, cache utils.RedisClient, ttl time.Duration, logger *log.Logger) *CachedRepository {
	return &CachedRepository{Repository: repo, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedRepository) List(ctx context.Context) ([]Medico, error) {
	gen, err := listGeneration(ctx, c.cache)
	if err != nil {
		monitoring.ListCache.WithLabelValues("error").Inc()
		c.logger.Printf("Failed to read list cache generation: %v", err)
		return c.Repository.List(ctx)
	}
	key := listKey(gen)

	raw, err := c.cache.GetFromCache(ctx, key)
	switch {
	case err == nil:
		var medicos []Medico
		if jsonErr := json.Unmarshal([]byte(raw), &medicos); jsonErr == nil && medicos != nil {
			monitoring.ListCache.WithLabelValues("hit").Inc()
			return medicos, nil
		}
		monitoring.ListCache.WithLabelValues("corrupt").Inc()
	case errors.Is(err, utils.ErrCacheMiss):
		monitoring.ListCache.WithLabelValues("miss").Inc()
	default:
		monitoring.ListCache.WithLabelValues("error").Inc()
		c.logger.Printf("Failed to read medico list from cache: %v", err)
	}

	medicos, err := c.Repository.List(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(medicos)
	if err != nil {
		c.logger.Printf("Failed to encode medico list for cache: %v", err)
		return medicos, nil
	}
	if err := c.cache.SetToCache(ctx, key, string(payload), c.ttl); err != nil {
		c.logger.Printf("Failed to cache medico list: %v", err)
	}
	return medicos, nil
}

// Invalidate drops the cached listing.
func (c *CachedRepository) Invalidate(ctx context.Context) error {
	return InvalidateListCache(ctx, c.cache)
}

// afterWrite runs once a write has committed. The write stands even when the
// cache cannot be invalidated.
func (c *CachedRepository) afterWrite(ctx context.Context) {
	if err := c.Invalidate(ctx); err != nil {
		monitoring.ListCache.WithLabelValues("invalidate_error").Inc()
		c.logger.Printf("Stale medico list may be served for up to %s: %v", c.ttl, err)
	}
}

func (c *CachedRepository) Create(ctx context.Context, medico *Medico) error {
	if err := c.Repository.Create(ctx, medico); err != nil {
		return err
	}
	c.afterWrite(ctx)
	return nil
}

func (c *CachedRepository) Delete(ctx context.Context, key IdentityKey) ([]Medico, error) {
	deleted, err := c.Repository.Delete(ctx, key)
	if err != nil {
		return nil, err
	}
	c.afterWrite(ctx)
	return deleted, nil
}

func (c *CachedRepository) DeleteByID(ctx context.Context, id uint) (*Medico, error) {
	m, err := c.Repository.DeleteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.afterWrite(ctx)
	return m, nil
}

func (c *CachedRepository) UpdatePartial(ctx context.Context, key IdentityKey, fields UpdateFields) (int64, error) {
	n, err := c.Repository.UpdatePartial(ctx, key, fields)
	if err != nil {
		return 0, err
	}
	c.afterWrite(ctx)
	return n, nil
}

// Close closes the underlying store; the Redis client has its own owner.
func (c *CachedRepository) Close() error {
	return c.Repository.Close()
}
