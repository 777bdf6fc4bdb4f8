package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	mr, client := setupRedis(t)

	q, err := NewRedisQueue[testRecord](client, DefaultConfig("usage"))
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, testRecord{ID: i, Label: "rec"}))
	}

	list, err := mr.List("queue:usage")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, length)

	items, err := q.DequeueWithTimeout(ctx, 2, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, testRecord{ID: 0, Label: "rec"}, items[0])
	assert.Equal(t, 1, items[1].ID)

	items, err = q.DequeueWithTimeout(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].ID)
}

func TestRedisQueue_SkipsUndecodableEntries(t *testing.T) {
	mr, client := setupRedis(t)

	q, err := NewRedisQueue[testRecord](client, DefaultConfig("usage"))
	require.NoError(t, err)

	_, err = mr.Push("queue:usage", "not-json", `{"id":7,"label":"ok"}`)
	require.NoError(t, err)

	items, err := q.DequeueWithTimeout(context.Background(), 10, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].ID)
}

func TestRedisQueue_RequiresClient(t *testing.T) {
	_, err := NewRedisQueue[testRecord](nil, DefaultConfig("usage"))
	assert.Error(t, err)

	_, client := setupRedis(t)
	_, err = NewRedisQueue[testRecord](client, nil)
	assert.Error(t, err)
}

func TestRedisDeadLetterQueue(t *testing.T) {
	_, client := setupRedis(t)

	dlq, err := NewRedisDeadLetterQueue[testRecord](client, DefaultConfig("usage"))
	require.NoError(t, err)
	defer dlq.Close()

	ctx := context.Background()

	require.NoError(t, dlq.Add(ctx, testRecord{ID: 1}, errors.New("insert failed")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, dlq.Add(ctx, testRecord{ID: 2}, errors.New("insert failed again")))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Item.ID)
	assert.Equal(t, "insert failed", items[0].Error)

	limited, err := dlq.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))
	assert.ErrorIs(t, dlq.Remove(ctx, items[0].ID), ErrItemNotFound)

	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Item.ID)
}
