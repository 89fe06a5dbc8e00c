package datastore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// applyQuery filters, orders and slices a full kind scan according to q.
// Both store implementations evaluate queries in memory: admin pages walk
// modest collections, so a scan with post-filtering is sufficient.
func applyQuery(entities []Entity, q Query) []Entity {
	out := entities[:0:0]
	for _, e := range entities {
		if matches(e, q.Filters) {
			out = append(out, e)
		}
	}
	sortEntities(out, q.Orders)
	return slicePage(out, q.Offset, q.Limit)
}

func countMatches(entities []Entity, filters []FilterClause) int {
	n := 0
	for _, e := range entities {
		if matches(e, filters) {
			n++
		}
	}
	return n
}

func matches(e Entity, filters []FilterClause) bool {
	for _, f := range filters {
		value, ok := e.Props[f.Property]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if compareValues(value, f.Value) != 0 {
				return false
			}
		case OpContains:
			if !containsValue(value, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsValue(value, needle any) bool {
	want := fmt.Sprint(needle)
	switch v := value.(type) {
	case string:
		return strings.Contains(v, want)
	case []string:
		for _, item := range v {
			if item == want {
				return true
			}
		}
		return false
	default:
		return strings.Contains(fmt.Sprint(v), want)
	}
}

func sortEntities(entities []Entity, orders []OrderClause) {
	if len(orders) == 0 {
		// Stable position for unordered scans so paging never shows
		// duplicates across pages.
		sort.SliceStable(entities, func(i, j int) bool {
			return entities[i].Key < entities[j].Key
		})
		return
	}
	sort.SliceStable(entities, func(i, j int) bool {
		for _, o := range orders {
			c := compareValues(entities[i].Props[o.Property], entities[j].Props[o.Property])
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return entities[i].Key < entities[j].Key
	})
}

func slicePage(entities []Entity, offset, limit int) []Entity {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entities) {
		return nil
	}
	entities = entities[offset:]
	if limit > 0 && limit < len(entities) {
		entities = entities[:limit]
	}
	return entities
}

// compareValues orders two property values: nil first, then by numeric,
// time, boolean or string comparison. Mixed types fall back to their string
// forms.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if av, aok := toFloat(a); aok {
		if bv, bok := toFloat(b); bok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
