package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/primes-api/pkg/cache"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/isoweek"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

func bootstrapCacheKey() string {
	return cache.Key("bootstrap")
}

func weekCacheKey(agentID string, key isoweek.WeekKey) string {
	return cache.Key("week", agentID, key.String())
}

func recapCacheKey(agentID string, year int) string {
	return cache.Key("recap", agentID, strconv.Itoa(year))
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Delete removes exact keys.
func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// ForgetAgent drops every cached week view and recap of one agent.
func (s *CacheService) ForgetAgent(ctx context.Context, agentID string) {
	_ = s.Invalidate(ctx, cache.Key("week", agentID, "*"))
	_ = s.Invalidate(ctx, cache.Key("recap", agentID, "*"))
}

// ForgetWeek drops the cached week views of agentIDs for key together with their recaps for
// every calendar year the week touches, and returns those years. 2024-W01 starts on
// 2024-01-01 but 2020-W53 spans 2020 and 2021.
func (s *CacheService) ForgetWeek(ctx context.Context, key isoweek.WeekKey, agentIDs []string) []int {
	start, end := isoweek.Range(key)
	years := []int{start.Year}
	if last := end.AddDays(-1); last.Year != start.Year {
		years = append(years, last.Year)
	}

	keys := make([]string, 0, len(agentIDs)*(1+len(years)))
	for _, id := range agentIDs {
		keys = append(keys, weekCacheKey(id, key))
		for _, y := range years {
			keys = append(keys, recapCacheKey(id, y))
		}
	}
	_ = s.Delete(ctx, keys...)
	return years
}
