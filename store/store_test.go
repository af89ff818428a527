package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/any2any-bot/types"
)

func TestMemoryDeduper(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDeduper(time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	seen, err := d.Seen(ctx, 1)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, _ = d.Seen(ctx, 1)
	assert.True(t, seen)

	seen, _ = d.Seen(ctx, 2)
	assert.False(t, seen)

	clock = clock.Add(2 * time.Minute)
	seen, _ = d.Seen(ctx, 1)
	assert.False(t, seen, "expired ids are forgotten")
	assert.Equal(t, 1, d.Len())
}

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("POSTGRES_DB", "")
	t.Setenv("POSTGRES_USER", "bot")
	t.Setenv("POSTGRES_PASSWORD", "p@ss:word")

	assert.Equal(t, "postgres://bot:p%40ss%3Aword@db:5432/any2any?sslmode=disable", buildPostgresDSNFromEnv())
}

func TestGenerateKey(t *testing.T) {
	r := &RedisClient{prefix: "any2any"}
	assert.Equal(t, "any2any:update:42", r.generateKey("update", "42"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
}

func TestNopJournal(t *testing.T) {
	var j types.Journal = NopJournal{}
	assert.NoError(t, j.Record(context.Background(), types.OperationRecord{UserID: 1}))
}

func TestRedisDeduper(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0, "any2any_test_"+time.Now().Format("150405.000000"))
	require.NoError(t, err)
	defer client.Close()

	d := NewRedisDeduper(client, time.Minute)
	seen, err := d.Seen(ctx, 7)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, 7)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestPostgresJournal(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	j, err := NewPostgresJournal(ctx, dsn)
	require.NoError(t, err)
	defer j.Close()

	since := time.Now().Add(-time.Second)
	require.NoError(t, j.Record(ctx, types.OperationRecord{
		UserID: 99, ChatID: 990, Operation: "merge", Outcome: types.OutcomeSuccess, Duration: time.Second,
	}))
	require.NoError(t, j.Record(ctx, types.OperationRecord{
		UserID: 99, ChatID: 990, Operation: "merge", Outcome: types.OutcomeFailed, Error: "boom",
	}))

	counts, err := j.OperationCounts(ctx, since)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts["merge/success"], 1)
	assert.GreaterOrEqual(t, counts["merge/failed"], 1)
}
