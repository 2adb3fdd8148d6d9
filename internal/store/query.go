package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// filter is one accumulated column filter, rendered as col=eq.value.
type filter struct {
	column string
	value  string
}

// Query is a fluent builder mapped 1:1 onto the store's REST semantics.
// Select/Eq/Order/Limit chain into a GET; Insert switches the builder to
// a POST; Update switches it to a PATCH scoped by the accumulated filters.
// There is exactly one Execute path for all three verbs.
type Query struct {
	client       *Client
	table        string
	selectFields string
	filters      []filter
	order        string
	limit        int

	insertRow   any
	updatePatch any
}

// Select sets the projected fields (defaults to *).
func (q *Query) Select(fields string) *Query {
	q.selectFields = fields
	return q
}

// Eq adds an equality filter on column.
func (q *Query) Eq(column string, value any) *Query {
	q.filters = append(q.filters, filter{column: column, value: fmt.Sprintf("eq.%v", value)})
	return q
}

// Order sets the ordering column and direction.
func (q *Query) Order(column string, desc bool) *Query {
	direction := "asc"
	if desc {
		direction = "desc"
	}
	q.order = column + "." + direction
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Insert turns the query into a row insertion.
func (q *Query) Insert(row any) *Query {
	q.insertRow = row
	return q
}

// Update turns the query into a patch applied to all rows matching the
// accumulated filters.
func (q *Query) Update(patch any) *Query {
	q.updatePatch = patch
	return q
}

// Execute issues the built request and returns the normalized rows.
func (q *Query) Execute(ctx context.Context) ([]Row, error) {
	path := "/rest/v1/" + q.table

	switch {
	case q.insertRow != nil:
		return q.client.do(ctx, "POST", path, nil, q.insertRow)
	case q.updatePatch != nil:
		return q.client.do(ctx, "PATCH", path, q.filterValues(), q.updatePatch)
	default:
		params := q.filterValues()
		params.Set("select", q.selectFields)
		if q.order != "" {
			params.Set("order", q.order)
		}
		if q.limit > 0 {
			params.Set("limit", strconv.Itoa(q.limit))
		}
		return q.client.do(ctx, "GET", path, params, nil)
	}
}

func (q *Query) filterValues() url.Values {
	params := url.Values{}
	for _, f := range q.filters {
		params.Set(f.column, f.value)
	}
	return params
}

// RpcCall invokes a stored procedure on the store.
type RpcCall struct {
	client   *Client
	function string
	params   map[string]any
}

// Execute posts the procedure call and returns the normalized rows.
func (r *RpcCall) Execute(ctx context.Context) ([]Row, error) {
	params := r.params
	if params == nil {
		params = map[string]any{}
	}
	return r.client.do(ctx, "POST", "/rest/v1/rpc/"+r.function, nil, params)
}
