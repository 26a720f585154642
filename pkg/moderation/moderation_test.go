package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/rbrabson/chronicles/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarnings(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewModerator(store.NewMemoryStore(), WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))

	_, _, err := m.AddWarning(ctx, "g", "u", "mod", "  ")
	assert.ErrorIs(t, err, ErrReasonRequired)

	first, total, err := m.AddWarning(ctx, "g", "u", "mod", "spam")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NotEmpty(t, first.ID)

	second, total, err := m.AddWarning(ctx, "g", "u", "mod", "flood")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = m.AddWarning(ctx, "g", "other", "mod", "spam")
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	warnings, err := m.ListWarnings(ctx, "g", "u")
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Equal(t, first.ID, warnings[0].ID)
	assert.Equal(t, second.ID, warnings[1].ID)

	removed, remaining, err := m.RemoveWarning(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, "u", removed.MemberID)

	_, _, err = m.RemoveWarning(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
