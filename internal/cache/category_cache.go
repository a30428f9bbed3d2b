package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/domain"
)

const categoryKeyPrefix = "issue-service:category:"

// CategoryCache caches registry entries. Cache failures are logged and
// reported as misses so callers always fall back to the store.
type CategoryCache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

type cachedCategory struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	DefaultPriority       string    `json:"default_priority"`
	ResponseWindowSeconds int64     `json:"response_window_seconds"`
	DepartmentID          string    `json:"department_id"`
	Active                bool      `json:"active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewCategoryCache builds a cache; a nil store disables caching.
func NewCategoryCache(store Store, ttl time.Duration, logger *zap.Logger) *CategoryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryCache{store: store, ttl: ttl, logger: logger}
}

func (c *CategoryCache) Get(ctx context.Context, id domain.CategoryID) (domain.Category, bool) {
	if c == nil || c.store == nil {
		return domain.Category{}, false
	}
	data, ok, err := c.store.Get(ctx, categoryKey(id))
	if err != nil {
		c.logger.Warn("category cache read failed", zap.String("category_id", string(id)), zap.Error(err))
		return domain.Category{}, false
	}
	if !ok {
		return domain.Category{}, false
	}
	var cached cachedCategory
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("category cache entry corrupt", zap.String("category_id", string(id)), zap.Error(err))
		return domain.Category{}, false
	}
	return domain.Category{
		ID:              domain.CategoryID(cached.ID),
		Name:            cached.Name,
		DefaultPriority: domain.Priority(cached.DefaultPriority),
		ResponseWindow:  time.Duration(cached.ResponseWindowSeconds) * time.Second,
		DepartmentID:    domain.DepartmentID(cached.DepartmentID),
		Active:          cached.Active,
		CreatedAt:       cached.CreatedAt,
		UpdatedAt:       cached.UpdatedAt,
	}, true
}

func (c *CategoryCache) Set(ctx context.Context, category domain.Category) {
	if c == nil || c.store == nil {
		return
	}
	data, err := json.Marshal(cachedCategory{
		ID:                    string(category.ID),
		Name:                  category.Name,
		DefaultPriority:       string(category.DefaultPriority),
		ResponseWindowSeconds: int64(category.ResponseWindow / time.Second),
		DepartmentID:          string(category.DepartmentID),
		Active:                category.Active,
		CreatedAt:             category.CreatedAt,
		UpdatedAt:             category.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, categoryKey(category.ID), data, c.ttl); err != nil {
		c.logger.Warn("category cache write failed", zap.String("category_id", string(category.ID)), zap.Error(err))
	}
}

func (c *CategoryCache) Invalidate(ctx context.Context, id domain.CategoryID) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, categoryKey(id)); err != nil {
		c.logger.Warn("category cache invalidation failed", zap.String("category_id", string(id)), zap.Error(err))
	}
}

func categoryKey(id domain.CategoryID) string {
	return categoryKeyPrefix + string(id)
}
