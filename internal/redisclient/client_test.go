package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAvailabilityHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	client := NewFromRedis(rdb)

	mock.ExpectHGetAll("availability:1").SetVal(map[string]string{
		"available": "42",
		"capacity":  "100",
	})

	available, capacity, ok, err := client.GetAvailability(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, available)
	assert.Equal(t, 100, capacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAvailabilityMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	client := NewFromRedis(rdb)

	mock.ExpectHGetAll("availability:2").SetVal(map[string]string{})

	_, _, ok, err := client.GetAvailability(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok, "a miss must send the caller to the database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAvailabilityCorruptEntry(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	client := NewFromRedis(rdb)

	mock.ExpectHGetAll("availability:3").SetVal(map[string]string{
		"available": "not-a-number",
		"capacity":  "100",
	})

	_, _, _, err := client.GetAvailability(context.Background(), 3)
	assert.Error(t, err)
}

func TestSetAvailability(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	client := NewFromRedis(rdb)

	mock.ExpectHSet("availability:1", "available", 42, "capacity", 100).SetVal(2)
	mock.ExpectExpire("availability:1", time.Hour).SetVal(true)

	err := client.SetAvailability(context.Background(), 1, 42, 100)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateAvailability(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	client := NewFromRedis(rdb)

	mock.ExpectDel("availability:1").SetVal(1)

	require.NoError(t, client.InvalidateAvailability(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocks(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	client := NewFromRedis(rdb)

	mock.ExpectSetNX("lock:txn:abc", "1", 30*time.Second).SetVal(true)
	mock.ExpectSetNX("lock:txn:abc", "1", 30*time.Second).SetVal(false)
	mock.ExpectDel("lock:txn:abc").SetVal(1)

	acquired, err := client.AcquireLock(context.Background(), "txn:abc", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = client.AcquireLock(context.Background(), "txn:abc", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired, "a held lock must not be re-acquired")

	require.NoError(t, client.ReleaseLock(context.Background(), "txn:abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
