package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStorePutAssignsKey(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	saved, err := s.Put(ctx, Entity{Kind: "post", Props: map[string]any{"title": "first"}})
	require.NoError(t, err)
	require.NotEmpty(t, saved.Key)

	got, err := s.Get(ctx, "post", saved.Key)
	require.NoError(t, err)
	require.Equal(t, "first", got.Props["title"])
}

func TestMemStoreGetMissing(t *testing.T) {
	s := NewMemStore()
	_, err := s.Get(context.Background(), "post", "nope")
	require.ErrorIs(t, err, ErrNoSuchEntity)

	// A malformed or foreign key behaves like any other missing record.
	_, err = s.Get(context.Background(), "post", "!!not-a-key!!")
	require.ErrorIs(t, err, ErrNoSuchEntity)
}

func TestMemStoreIsolatesCallers(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	props := map[string]any{"tags": []string{"a"}}
	saved, err := s.Put(ctx, Entity{Kind: "post", Props: props})
	require.NoError(t, err)

	// Mutating what the caller handed in must not leak into the store.
	props["tags"].([]string)[0] = "mutated"
	got, err := s.Get(ctx, "post", saved.Key)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, got.Props["tags"])

	// Nor must mutating what Get returned.
	got.Props["tags"].([]string)[0] = "mutated"
	again, err := s.Get(ctx, "post", saved.Key)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, again.Props["tags"])
}

func TestMemStoreDelete(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	saved, err := s.Put(ctx, Entity{Kind: "post", Props: map[string]any{}})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "post", saved.Key))

	_, err = s.Get(ctx, "post", saved.Key)
	require.ErrorIs(t, err, ErrNoSuchEntity)
	require.ErrorIs(t, s.Delete(ctx, "post", saved.Key), ErrNoSuchEntity)
}

func TestMemStoreRunAndCount(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for _, title := range []string{"c", "a", "b"} {
		_, err := s.Put(ctx, Entity{Kind: "post", Props: map[string]any{
			"title": title,
			"draft": title == "b",
		}})
		require.NoError(t, err)
	}

	n, err := s.Count(ctx, Query{Kind: "post"})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = s.Count(ctx, Query{Kind: "post", Filters: []FilterClause{
		{Property: "draft", Op: OpEqual, Value: true},
	}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	items, err := s.Run(ctx, Query{Kind: "post", Orders: ParseOrder("title"), Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "a", items[0].Props["title"])
	require.Equal(t, "b", items[1].Props["title"])

	items, err = s.Run(ctx, Query{Kind: "post", Orders: ParseOrder("title"), Offset: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "c", items[0].Props["title"])
}
