package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/primes-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "primes:bootstrap", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "primes:bootstrap", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, repo.Delete(ctx, "primes:bootstrap"))
	require.NoError(t, repo.DeleteByPattern(ctx, "primes:*"))
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Close())
}
