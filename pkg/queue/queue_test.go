package queue

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportJob_RoundTrip(t *testing.T) {
	job, err := NewExportJob(ExportPayload{CourseModuleID: 11, ViewerID: 2, Sort: "timer", Desc: true})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypeReportExport, job.Type)

	p, err := job.ExportPayload()
	require.NoError(t, err)
	assert.Equal(t, int64(11), p.CourseModuleID)
	assert.Equal(t, "timer", p.Sort)
	assert.True(t, p.Desc)

	job.Type = "email"
	_, err = job.ExportPayload()
	assert.Error(t, err)
}

// TestQueue_Redis runs against a real server when TEST_REDIS_ADDR is set.
func TestQueue_Redis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Del(ctx, QueueExports, QueueDLQ).Err())

	q := NewQueue(client, nil)
	job, err := NewExportJob(ExportPayload{CourseModuleID: 11})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)

	for i := 1; i < MaxRetries; i++ {
		dead, err := q.Retry(ctx, got)
		require.NoError(t, err)
		assert.False(t, dead)
		got, err = q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
	}
	dead, err := q.Retry(ctx, got)
	require.NoError(t, err)
	assert.True(t, dead)
	assert.Equal(t, int64(1), client.LLen(ctx, QueueDLQ).Val())
}
