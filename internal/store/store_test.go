package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	d := &Draft{
		SessionID:  "s1",
		Source:     "graph TD; A-->B",
		Theme:      "mermaidDark",
		Font:       "theme-default",
		Multiplier: 2,
	}
	require.NoError(t, s.Save(ctx, d))
	assert.False(t, d.UpdatedAt.IsZero())

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "graph TD; A-->B", got.Source)
	assert.Equal(t, "mermaidDark", got.Theme)
	assert.Equal(t, 2.0, got.Multiplier)
	assert.True(t, d.UpdatedAt.Equal(got.UpdatedAt))

	// Saving again replaces the draft.
	d.Source = "graph LR; X-->Y"
	d.Multiplier = 0
	d.UpdatedAt = time.Time{}
	require.NoError(t, s.Save(ctx, d))
	got, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "graph LR; X-->Y", got.Source)
	assert.Equal(t, 1.0, got.Multiplier)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "nope"), ErrDraftNotFound)
	assert.ErrorIs(t, s.Save(context.Background(), &Draft{}), ErrInvalidDraft)
}

func TestListAndPrune(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.Save(ctx, &Draft{
			SessionID: id,
			Theme:     "mermaidDefault",
			Font:      "theme-default",
			UpdatedAt: base.Add(time.Duration(i) * time.Hour).Add(500 * time.Millisecond * time.Duration(i%2)),
		}))
	}

	drafts, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, "new", drafts[0].SessionID)
	assert.Equal(t, "old", drafts[2].SessionID)

	n, err := s.Prune(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	drafts, err = s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "new", drafts[0].SessionID)

	require.NoError(t, s.Delete(ctx, "new"))
	drafts, err = s.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "drafts.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, &Draft{SessionID: "a", Theme: "t", Font: "f"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "t", got.Theme)

	_, err = Open(ctx, "")
	assert.Error(t, err)
}
