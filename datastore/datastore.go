// Package datastore provides the document store the admin interface reads and
// writes through. Records are schemaless property maps addressed by kind and
// key; queries support equality/containment filters, ordering and
// offset/limit pagination, which is all the admin views need.
package datastore

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoSuchEntity is returned when a key does not resolve to a stored entity.
// A malformed key behaves exactly like a missing one.
var ErrNoSuchEntity = errors.New("datastore: no such entity")

// Filter operations accepted by queries.
const (
	OpEqual    = "eq"
	OpContains = "contains"
)

// Entity is a single stored record: a property map under a kind and key.
type Entity struct {
	Kind  string
	Key   string
	Props map[string]any
}

// Clone returns a deep copy of the entity. Property values that are shared
// containers (byte and string slices) are copied as well so callers can
// mutate the clone freely.
func (e Entity) Clone() Entity {
	clone := e
	if e.Props != nil {
		clone.Props = make(map[string]any, len(e.Props))
		for name, value := range e.Props {
			clone.Props[name] = cloneValue(value)
		}
	}
	return clone
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return append([]byte(nil), v...)
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

// FilterClause restricts a query to entities whose property matches a value.
type FilterClause struct {
	Property string
	Op       string
	Value    any
}

// OrderClause sorts query results by one property.
type OrderClause struct {
	Property   string
	Descending bool
}

// Query describes one fetch against a kind.
type Query struct {
	Kind    string
	Filters []FilterClause
	Orders  []OrderClause
	Offset  int
	Limit   int
}

// ParseOrder converts an ordering expression such as "-updated_at, title"
// into order clauses. A leading '-' marks a descending property. Empty
// segments are skipped.
func ParseOrder(expr string) []OrderClause {
	var orders []OrderClause
	for _, part := range strings.Split(expr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		desc := strings.HasPrefix(name, "-")
		if desc {
			name = strings.TrimSpace(strings.TrimPrefix(name, "-"))
		}
		if name == "" {
			continue
		}
		orders = append(orders, OrderClause{Property: name, Descending: desc})
	}
	return orders
}

// Store is the collaborator interface the admin layer issues reads and writes
// through. Put assigns a fresh key when the entity has none and returns the
// stored entity.
type Store interface {
	Get(ctx context.Context, kind, key string) (Entity, error)
	Put(ctx context.Context, entity Entity) (Entity, error)
	Delete(ctx context.Context, kind, key string) error
	Count(ctx context.Context, q Query) (int, error)
	Run(ctx context.Context, q Query) ([]Entity, error)
	Close() error
}
