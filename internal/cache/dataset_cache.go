package cache

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"pupilflow/internal/infrastructure"
	"pupilflow/pkg/contracts/domain"
)

// DatasetCache is a bounded LRU of assembled datasets. Cached datasets are
// shared and must not be mutated.
type DatasetCache struct {
	entries *lru.Cache[string, *domain.Dataset]
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger
}

// NewDatasetCache creates a cache holding at most size datasets.
func NewDatasetCache(size int, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) (*DatasetCache, error) {
	entries, err := lru.New[string, *domain.Dataset](size)
	if err != nil {
		return nil, fmt.Errorf("create dataset cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetCache{
		entries: entries,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "dataset_cache")),
	}, nil
}

// Key combines a directory and the fingerprint of its files.
func Key(dir, fingerprint string) string {
	return dir + "@" + fingerprint
}

// Get returns the dataset cached under key.
func (c *DatasetCache) Get(ctx context.Context, key string) (*domain.Dataset, bool) {
	ds, ok := c.entries.Get(key)
	c.metrics.RecordCacheLookup(ctx, ok)
	c.logger.DebugContext(ctx, "Dataset cache lookup",
		slog.String("key", key),
		slog.Bool("hit", ok))
	return ds, ok
}

// Add stores ds under key.
func (c *DatasetCache) Add(key string, ds *domain.Dataset) {
	if evicted := c.entries.Add(key, ds); evicted {
		c.logger.Debug("Dataset cache evicted oldest entry")
	}
}

// Purge drops every cached dataset.
func (c *DatasetCache) Purge() {
	c.entries.Purge()
	c.logger.Info("Dataset cache purged")
}

// Len returns the number of cached datasets.
func (c *DatasetCache) Len() int {
	return c.entries.Len()
}
