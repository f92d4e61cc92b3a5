package middleware

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed, skipping container-based test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisLimiterSlidingWindow(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	start := time.Now()
	now := start
	rl := NewRedisLimiter(client, "test_rate_limit", []Window{{Period: time.Minute, Limit: 2}})
	rl.now = func() time.Time { return now }

	d, err := rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, 2, d.Limit)

	now = start.Add(10 * time.Second)
	d, err = rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	now = start.Add(20 * time.Second)
	d, err = rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.Period)
	// the oldest request leaves the window one minute after it was made
	assert.Equal(t, start.Add(time.Minute).UnixMilli(), d.Reset.UnixMilli())

	// rejected requests are not recorded
	count, err := client.ZCard(ctx, "test_rate_limit:10.0.0.1:60").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// a different client has its own window
	d, err = rl.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	now = start.Add(61 * time.Second)
	d, err = rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterHourWindow(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	start := time.Now()
	now := start
	rl := NewRedisLimiter(client, "test_rate_limit_hour", []Window{
		{Period: time.Minute, Limit: 5},
		{Period: time.Hour, Limit: 2},
	})
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		d, err := rl.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		now = now.Add(2 * time.Minute)
	}

	d, err := rl.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Hour, d.Period)
	assert.Equal(t, 2, d.Limit)
}

func TestRedisLimiterUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer func() { _ = client.Close() }()

	rl := NewRedisLimiter(client, "rl", WindowsFromConfig(10, 50))
	_, err := rl.Allow(context.Background(), "ip")
	assert.Error(t, err)
}
