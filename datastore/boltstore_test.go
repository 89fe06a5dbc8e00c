package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(&BoltStoreOptions{
		Path:    filepath.Join(t.TempDir(), "admin.db"),
		Timeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStoreOptionsValidation(t *testing.T) {
	_, err := NewBoltStore(&BoltStoreOptions{})
	require.Error(t, err)
}

func TestBoltStoreRoundTrip(t *testing.T) {
	s := newTestBoltStore(t)
	ctx := context.Background()

	published := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	saved, err := s.Put(ctx, Entity{Kind: "post", Props: map[string]any{
		"title":        "hello",
		"views":        int64(12),
		"rating":       4.5,
		"draft":        false,
		"published_at": published,
		"tags":         []string{"go", "web"},
		"cover":        []byte{0x1, 0x2, 0x3},
	}})
	require.NoError(t, err)
	require.NotEmpty(t, saved.Key)

	got, err := s.Get(ctx, "post", saved.Key)
	require.NoError(t, err)
	require.Equal(t, "hello", got.Props["title"])
	require.Equal(t, int64(12), got.Props["views"])
	require.Equal(t, 4.5, got.Props["rating"])
	require.Equal(t, false, got.Props["draft"])
	require.Equal(t, []string{"go", "web"}, got.Props["tags"])
	require.Equal(t, []byte{0x1, 0x2, 0x3}, got.Props["cover"])

	at, ok := got.Props["published_at"].(time.Time)
	require.True(t, ok)
	require.True(t, at.Equal(published))
}

func TestBoltStoreDeleteAndMissing(t *testing.T) {
	s := newTestBoltStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "post", "missing")
	require.ErrorIs(t, err, ErrNoSuchEntity)
	require.ErrorIs(t, s.Delete(ctx, "post", "missing"), ErrNoSuchEntity)

	saved, err := s.Put(ctx, Entity{Kind: "post", Props: map[string]any{"title": "x"}})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "post", saved.Key))
	_, err = s.Get(ctx, "post", saved.Key)
	require.ErrorIs(t, err, ErrNoSuchEntity)
}

func TestBoltStoreQuery(t *testing.T) {
	s := newTestBoltStore(t)
	ctx := context.Background()

	for i, title := range []string{"b", "a", "c"} {
		_, err := s.Put(ctx, Entity{Kind: "post", Props: map[string]any{
			"title": title,
			"views": int64(i),
		}})
		require.NoError(t, err)
	}

	n, err := s.Count(ctx, Query{Kind: "post"})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	items, err := s.Run(ctx, Query{Kind: "post", Orders: ParseOrder("-title"), Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "c", items[0].Props["title"])
	require.Equal(t, "b", items[1].Props["title"])
}
