package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, Ping(ctx, client))

	require.NoError(t, Set(ctx, client, "auth-storage", `{"token":"T1"}`, time.Minute))
	value, found, err := Get(ctx, client, "auth-storage")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"token":"T1"}`, string(value))

	exists, err := Exists(ctx, client, "auth-storage")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, Del(ctx, client, "auth-storage"))
	_, found, err = Get(ctx, client, "auth-storage")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewRedisClientErrors(t *testing.T) {
	_, err := NewRedisClient(context.Background(), Config{})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisClient(context.Background(), Config{Addr: addr})
	assert.Error(t, err)
}
