//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microfinance/pkg/testutil"
)

func TestProductCache_Integration(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRedisContainer(ctx, t)
	client, err := Connect(ctx, rc.Addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := NewProductCache(client, time.Minute)
	p := testProduct(t)

	_, found, err := c.Get(ctx, p.TenantID(), p.ID())
	require.NoError(t, err)
	assert.False(t, found, "cold cache")

	require.NoError(t, c.Set(ctx, p))
	got, found, err := c.Get(ctx, p.TenantID(), p.ID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p.Code(), got.Code())

	ttl, err := client.TTL(ctx, key(p.TenantID(), p.ID())).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Invalidate(ctx, p.TenantID(), p.ID()))
	_, found, err = c.Get(ctx, p.TenantID(), p.ID())
	require.NoError(t, err)
	assert.False(t, found)
}
