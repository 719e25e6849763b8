package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunsizer/sunsizer/pkg/types"
)

func TestMemorySessions(t *testing.T) {
	m := NewMemoryProvider()
	ctx := context.Background()

	_, err := m.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	now := time.Now()
	s1 := types.Session{ID: "s1", Name: "Lagos residence", OwnerID: "u1", CreatedAt: now}
	s2 := types.Session{ID: "s2", Name: "Clinic", OwnerID: "u2", CreatedAt: now.Add(time.Minute)}
	require.NoError(t, m.CreateSession(ctx, s1))
	require.NoError(t, m.CreateSession(ctx, s2))

	assert.Error(t, m.CreateSession(ctx, s1), "duplicate IDs are rejected")

	got, err := m.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s1, got)

	s1.Entries = append(s1.Entries, types.LoadEntry{Name: "TV", UnitWatts: 600, Quantity: 1, HoursPerDay: 5})
	require.NoError(t, m.UpdateSession(ctx, s1))
	got, err = m.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)

	t.Run("list by owner", func(t *testing.T) {
		owned, err := m.ListSessions(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, "s1", owned[0].ID)

		all, err := m.ListSessions(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	require.NoError(t, m.DeleteSession(ctx, "s1"))
	_, err = m.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, m.UpdateSession(ctx, s2))
	assert.ErrorIs(t, m.UpdateSession(ctx, types.Session{ID: "gone"}), ErrSessionNotFound)
}

func TestMemoryQuotes(t *testing.T) {
	m := NewMemoryProvider()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.InsertQuote(ctx, types.Quote{
			ID:        string(rune('a' + i)),
			SessionID: "s1",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	assert.Error(t, m.InsertQuote(ctx, types.Quote{SessionID: "s1"}), "missing timestamp")
	assert.Error(t, m.InsertQuote(ctx, types.Quote{Timestamp: base}), "missing sessionID")

	t.Run("range is [start, end)", func(t *testing.T) {
		quotes, err := m.GetQuoteHistory(ctx, "s1", base, base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, quotes, 2)
		assert.Equal(t, base, quotes[0].Timestamp)
	})

	t.Run("latest quote time", func(t *testing.T) {
		ts, err := m.GetLatestQuoteTime(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, base.Add(2*time.Hour), ts)

		ts, err = m.GetLatestQuoteTime(ctx, "other")
		require.NoError(t, err)
		assert.True(t, ts.IsZero())
	})
}

func TestMemoryUsers(t *testing.T) {
	m := NewMemoryProvider()
	ctx := context.Background()

	_, err := m.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrUserNotFound)

	u := types.User{ID: "u1", Email: "installer@example.com"}
	require.NoError(t, m.CreateUser(ctx, u))
	assert.Error(t, m.CreateUser(ctx, u))

	got, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	u.Email = "new@example.com"
	require.NoError(t, m.UpdateUser(ctx, u))
	got, err = m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
}
