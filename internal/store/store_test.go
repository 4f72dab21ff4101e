package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySaveAndGet(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Save(ctx, Record{ID: "a", Status: StatusRunning}))
	require.NoError(t, m.Save(ctx, Record{ID: "a", Status: StatusCompleted, Result: json.RawMessage(`{"ok":true}`)}))

	rec, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Result))
	assert.False(t, rec.UpdatedAt.IsZero())

	rec.Result[0] = 'x'
	again, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(again.Result))
}

func TestMemoryExpiresRecords(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, Record{ID: "old", Status: StatusFailed, Error: "boom"}))
	now = now.Add(2 * time.Minute)

	_, err := m.Get(ctx, "old")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Save(ctx, Record{ID: "new", Status: StatusRunning}))
	m.lock.RLock()
	_, stillThere := m.records["old"]
	m.lock.RUnlock()
	assert.False(t, stillThere)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis("not-a-url://", time.Hour)
	require.Error(t, err)
}
