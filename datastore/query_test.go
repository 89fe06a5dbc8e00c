package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseOrder(t *testing.T) {
	orders := ParseOrder("-updated_at, name")
	require.Equal(t, []OrderClause{
		{Property: "updated_at", Descending: true},
		{Property: "name"},
	}, orders)

	require.Nil(t, ParseOrder(""))
	require.Nil(t, ParseOrder("  ,  "))
}

func TestMatchesFilters(t *testing.T) {
	e := Entity{Kind: "post", Key: "a", Props: map[string]any{
		"title": "hello",
		"views": int64(7),
		"tags":  []string{"go", "web"},
	}}

	require.True(t, matches(e, []FilterClause{{Property: "title", Op: OpEqual, Value: "hello"}}))
	require.False(t, matches(e, []FilterClause{{Property: "title", Op: OpEqual, Value: "other"}}))
	require.True(t, matches(e, []FilterClause{{Property: "views", Op: OpEqual, Value: 7}}))
	require.True(t, matches(e, []FilterClause{{Property: "tags", Op: OpContains, Value: "go"}}))
	require.False(t, matches(e, []FilterClause{{Property: "tags", Op: OpContains, Value: "rust"}}))
	require.False(t, matches(e, []FilterClause{{Property: "missing", Op: OpEqual, Value: "x"}}))
}

func TestSortEntities(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entities := []Entity{
		{Key: "b", Props: map[string]any{"n": int64(2), "at": now}},
		{Key: "a", Props: map[string]any{"n": int64(2), "at": now.Add(time.Hour)}},
		{Key: "c", Props: map[string]any{"n": int64(1)}},
	}

	sortEntities(entities, ParseOrder("-n, at"))
	require.Equal(t, "b", entities[0].Key)
	require.Equal(t, "a", entities[1].Key)
	require.Equal(t, "c", entities[2].Key)

	// Equal sort values fall back to key order.
	sortEntities(entities, ParseOrder("missing"))
	require.Equal(t, "a", entities[0].Key)
	require.Equal(t, "b", entities[1].Key)
	require.Equal(t, "c", entities[2].Key)
}

func TestSlicePage(t *testing.T) {
	entities := []Entity{{Key: "a"}, {Key: "b"}, {Key: "c"}}

	page := slicePage(entities, 1, 1)
	require.Len(t, page, 1)
	require.Equal(t, "b", page[0].Key)

	require.Empty(t, slicePage(entities, 5, 10))
	require.Len(t, slicePage(entities, 0, 0), 3)
	require.Len(t, slicePage(entities, 2, 10), 1)
}

func TestCompareValuesMixed(t *testing.T) {
	require.Negative(t, compareValues(nil, "x"))
	require.Positive(t, compareValues("x", nil))
	require.Zero(t, compareValues(nil, nil))
	require.Negative(t, compareValues(int64(1), 2.5))
	require.Negative(t, compareValues(false, true))
	require.Positive(t, compareValues("b", "a"))
}
