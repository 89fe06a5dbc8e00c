package admin

import (
	"context"
	"strconv"

	"github.com/darvin/datastore-admin/datastore"
)

// Page describes one slice of a list view. It is computed fresh per request
// from a live count of matching records.
type Page struct {
	ItemsPerPage int
	Current      int
	MaxPages     int
	First        int
	Last         int
	HasPrev      bool
	HasNext      bool
	Prev         int
	Next         int
}

// Paginate counts the records matching the base query, clamps the requested
// page into [1, maxPages] and fetches exactly that page. The page number
// arrives as text; anything unparsable or out of range silently resets to
// the first page, never an error. Page one exists even for zero records.
func Paginate(ctx context.Context, store datastore.Store, base datastore.Query, itemsPerPage int, requestedPage string) (*Page, []datastore.Entity, error) {
	total, err := store.Count(ctx, datastore.Query{Kind: base.Kind, Filters: base.Filters})
	if err != nil {
		return nil, nil, err
	}

	maxPages := (total + itemsPerPage - 1) / itemsPerPage
	if maxPages < 1 {
		maxPages = 1
	}
	current, err := strconv.Atoi(requestedPage)
	if err != nil || current < 1 || current > maxPages {
		current = 1
	}

	page := &Page{
		ItemsPerPage: itemsPerPage,
		Current:      current,
		MaxPages:     maxPages,
		First:        1,
		Last:         maxPages,
		HasPrev:      current > 1,
		HasNext:      current < maxPages,
	}
	if page.HasPrev {
		page.Prev = current - 1
	}
	if page.HasNext {
		page.Next = current + 1
	}

	query := base
	query.Offset = (current - 1) * itemsPerPage
	query.Limit = itemsPerPage
	items, err := store.Run(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	return page, items, nil
}
