//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galleria/storefront/test/integration"
)

func TestStockRepository(t *testing.T) {
	pool := integration.Postgres(t)
	repo := NewRepository(integration.Logger(), pool)
	ctx := context.Background()
	now := time.Now().UTC()

	flags, err := repo.GetMany(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"p1": true, "p2": true}, flags)

	for i := 0; i < 2; i++ {
		n, err := repo.SetMany(ctx, []string{"p1", "p2"}, false, now)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	n, err := repo.Seed(ctx, []string{"p1", "p2", "p3"}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	flags, err = repo.GetMany(ctx, []string{"p1", "p2", "p3", "p4"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"p1": false, "p2": false, "p3": true, "p4": true}, flags)
}
