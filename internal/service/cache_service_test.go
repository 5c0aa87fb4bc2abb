package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/primes-api/pkg/isoweek"
)

type failingCache struct{ memoryCache }

func (f *failingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("redis timeout")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCache(), metrics, time.Minute, nil, true)

	var out map[string]int
	hit, err := svc.Get(context.Background(), "primes:k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(context.Background(), "primes:k", map[string]int{"a": 1}, 0))
	hit, err = svc.Get(context.Background(), "primes:k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]int{"a": 1}, out)

	require.NoError(t, svc.Delete(context.Background(), "primes:k"))
	hit, _ = svc.Get(context.Background(), "primes:k", &out)
	assert.False(t, hit)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("miss")))
}

func TestCacheServiceDisabled(t *testing.T) {
	svc := NewCacheService(newMemoryCache(), nil, 0, nil, false)
	assert.False(t, svc.Enabled())
	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	hit, err := svc.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.NoError(t, nilSvc.Invalidate(context.Background(), "primes:*"))
}

func TestCacheServiceGetFailure(t *testing.T) {
	svc := NewCacheService(&failingCache{memoryCache{entries: map[string][]byte{}}}, nil, 0, nil, true)
	hit, err := svc.Get(context.Background(), "k", new(int))
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestCacheServiceForgetWeek(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, 0, nil, true)

	years := svc.ForgetWeek(context.Background(), isoweek.WeekKey{Year: 2024, Week: 10}, []string{"a1"})
	assert.Equal(t, []int{2024}, years)
	assert.Equal(t, []string{"primes:week:a1:2024-W10", "primes:recap:a1:2024"}, repo.deleted)

	repo.deleted = nil
	years = svc.ForgetWeek(context.Background(), isoweek.WeekKey{Year: 2020, Week: 53}, []string{"a1", "a2"})
	assert.Equal(t, []int{2020, 2021}, years)
	assert.Equal(t, []string{
		"primes:week:a1:2020-W53", "primes:recap:a1:2020", "primes:recap:a1:2021",
		"primes:week:a2:2020-W53", "primes:recap:a2:2020", "primes:recap:a2:2021",
	}, repo.deleted)
}
