package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkPaymentSeen(t *testing.T) {
	// This is a placeholder test - requires actual Redis connection
	// In real scenarios, use testcontainers or a miniredis mock

	t.Skip("Integration test - requires Redis")

	client, err := NewClient("localhost:6379", "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	first, err := client.MarkPaymentSeen(ctx, "tx-test-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	// Second sighting within the TTL window
	first, err = client.MarkPaymentSeen(ctx, "tx-test-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, first)
}

func TestSweepLockTokenCheckedRelease(t *testing.T) {
	t.Skip("Integration test - requires Redis")

	client, err := NewClient("localhost:6379", "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	token, acquired, err := client.AcquireSweepLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// A stale holder's token must not release the current lock.
	err = client.ReleaseSweepLock(ctx, "stale-token")
	require.NoError(t, err)

	_, acquired, err = client.AcquireSweepLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// The owning token does release it.
	require.NoError(t, client.ReleaseSweepLock(ctx, token))

	_, acquired, err = client.AcquireSweepLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
