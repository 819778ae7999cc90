package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T, ttl time.Duration) *SessionKV {
	t.Helper()
	db, err := NewDB(memoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, MigrateUp(context.Background(), db))
	return NewSessionKV(db, ttl)
}

func TestSession_SetGetRemove(t *testing.T) {
	t.Parallel()

	s := newTestKV(t, time.Hour).Session("tty-1")

	_, ok, err := s.Get("chatMessages")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("chatMessages", `[{"role":"user"}]`))
	require.NoError(t, s.Set("chatMessages", `[]`))
	v, ok, err := s.Get("chatMessages")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, v)

	require.NoError(t, s.Remove("chatMessages"))
	require.NoError(t, s.Remove("chatMessages"), "removing a missing key is fine")
	_, ok, err = s.Get("chatMessages")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_IsolatedByID(t *testing.T) {
	t.Parallel()

	kv := newTestKV(t, time.Hour)
	a, b := kv.Session("a"), kv.Session("b")

	require.NoError(t, a.Set("initialTypingComplete", "true"))
	_, ok, err := b.Get("initialTypingComplete")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "a", a.ID())
}

func TestSession_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	kv := newTestKV(t, time.Hour)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return base }

	s := kv.Session("tty-2")
	require.NoError(t, s.Set("chatMessages", "[]"))

	kv.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, ok, err := s.Get("chatMessages")
	require.NoError(t, err)
	assert.True(t, ok)

	kv.now = func() time.Time { return base.Add(time.Hour) }
	_, ok, err = s.Get("chatMessages")
	require.NoError(t, err)
	assert.False(t, ok, "entry must be gone once the ttl has elapsed")

	n, err := kv.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestNewSessionKV_DefaultTTL(t *testing.T) {
	t.Parallel()

	kv := NewSessionKV(nil, 0)
	assert.Equal(t, DefaultSessionTTL, kv.ttl)
}
