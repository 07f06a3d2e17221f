package cacheredis

import (
	"context"
	"os"
	"testing"
	"time"

	"recordproof/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("RECORDPROOF_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RECORDPROOF_TEST_REDIS_ADDR not set")
	}
	c := NewWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("RECORDPROOF_TEST_REDIS_PASSWORD"),
	}))
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	key := "test:" + uuid.NewString()
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	value := domain.VerificationResult{
		RecordID:       "u1",
		HashMatches:    true,
		SignatureValid: true,
		CheckedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.Put(ctx, key, value, time.Minute))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.RecordID, got.RecordID)
	assert.True(t, got.Valid())
	assert.True(t, value.CheckedAt.Equal(got.CheckedAt))
}
