package cache

import (
	"context"
	"testing"
	"time"

	"activation-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	require.NoError(t, m.PutSession(ctx, &models.Session{ID: "abc", UserID: 7, Role: models.RoleAdmin}, time.Hour))

	s, err := m.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 7, s.UserID)

	clock = clock.Add(2 * time.Hour)
	_, err = m.GetSession(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.SetCached(ctx, "dashboard:assignments:a", []byte("1"), 0)
	m.SetCached(ctx, "dashboard:assignments:b", []byte("2"), 0)
	m.SetCached(ctx, "other", []byte("3"), 0)
	require.NoError(t, m.PutSession(ctx, &models.Session{ID: "s1"}, 0))

	require.NoError(t, m.InvalidatePattern(ctx, DashboardPattern))

	_, ok := m.GetCached(ctx, "dashboard:assignments:a")
	assert.False(t, ok)
	_, ok = m.GetCached(ctx, "other")
	assert.True(t, ok)
	_, err := m.GetSession(ctx, "s1")
	assert.NoError(t, err)
}
