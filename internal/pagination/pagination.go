// Package pagination turns the optional page, size and sort query parameters
// of a list request into a concrete, deterministic PageRequest.
package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalid is returned for malformed or disallowed paging parameters.
var ErrInvalid = errors.New("invalid page request")

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order is one sort key.
type Order struct {
	Field     string
	Direction Direction
}

func (o Order) String() string {
	return o.Field + "," + string(o.Direction)
}

// PageRequest is a resolved page: zero-based page number, positive size and
// an ordering that always ends with a unique key.
type PageRequest struct {
	Page   int
	Size   int
	Orders []Order
}

// Offset returns the number of records skipped before this page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Options configures a Resolver.
type Options struct {
	DefaultSize int
	MaxSize     int

	// DefaultSort applies when no sort parameter is given.
	DefaultSort Order

	// Sortable lists the fields a client may sort by.
	Sortable []string

	// TieBreaker is a unique field appended ascending when not already
	// present, so equal sort keys page deterministically.
	TieBreaker string
}

// DefaultOptions returns the card listing defaults: size 20 (at most 2000),
// amount ascending, sortable by id and amount, ties broken by id.
func DefaultOptions() Options {
	return Options{
		DefaultSize: 20,
		MaxSize:     2000,
		DefaultSort: Order{Field: "amount", Direction: Asc},
		Sortable:    []string{"id", "amount"},
		TieBreaker:  "id",
	}
}

// Resolver builds PageRequests. Safe for concurrent use.
type Resolver struct {
	opts     Options
	sortable map[string]bool
}

// NewResolver creates a Resolver. Zero sizes fall back to DefaultOptions.
func NewResolver(opts Options) *Resolver {
	def := DefaultOptions()
	if opts.DefaultSize <= 0 {
		opts.DefaultSize = def.DefaultSize
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = def.MaxSize
	}
	if opts.DefaultSize > opts.MaxSize {
		opts.DefaultSize = opts.MaxSize
	}
	if opts.DefaultSort.Field == "" {
		opts.DefaultSort = def.DefaultSort
	}
	if opts.Sortable == nil {
		opts.Sortable = def.Sortable
	}

	sortable := make(map[string]bool, len(opts.Sortable))
	for _, f := range opts.Sortable {
		sortable[f] = true
	}
	return &Resolver{opts: opts, sortable: sortable}
}

// FromQuery resolves the page, size and sort parameters of a query string.
func (r *Resolver) FromQuery(q url.Values) (PageRequest, error) {
	return r.Resolve(q.Get("page"), q.Get("size"), q["sort"])
}

// Resolve builds a PageRequest from raw parameter values. Empty values take
// their defaults. Each sort value has the form "field[,field...][,asc|desc]";
// the direction is case-insensitive and defaults to asc.
func (r *Resolver) Resolve(rawPage, rawSize string, rawSort []string) (PageRequest, error) {
	req := PageRequest{Page: 0, Size: r.opts.DefaultSize}

	if rawPage != "" {
		page, err := strconv.Atoi(rawPage)
		if err != nil || page < 0 {
			return PageRequest{}, fmt.Errorf("%w: page %q", ErrInvalid, rawPage)
		}
		req.Page = page
	}

	if rawSize != "" {
		size, err := strconv.Atoi(rawSize)
		if err != nil || size < 1 {
			return PageRequest{}, fmt.Errorf("%w: size %q", ErrInvalid, rawSize)
		}
		req.Size = min(size, r.opts.MaxSize)
	}

	seen := make(map[string]bool)
	for _, raw := range rawSort {
		orders, err := r.parseSort(raw)
		if err != nil {
			return PageRequest{}, err
		}
		for _, o := range orders {
			if seen[o.Field] {
				continue
			}
			seen[o.Field] = true
			req.Orders = append(req.Orders, o)
		}
	}

	if len(req.Orders) == 0 {
		req.Orders = append(req.Orders, r.opts.DefaultSort)
		seen[r.opts.DefaultSort.Field] = true
	}
	if r.opts.TieBreaker != "" && !seen[r.opts.TieBreaker] {
		req.Orders = append(req.Orders, Order{Field: r.opts.TieBreaker, Direction: Asc})
	}

	// Guard against Page*Size overflowing the SQL offset.
	if req.Page > 0 && req.Offset()/req.Page != req.Size {
		return PageRequest{}, fmt.Errorf("%w: page %d too large", ErrInvalid, req.Page)
	}

	return req, nil
}

func (r *Resolver) parseSort(raw string) ([]Order, error) {
	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}

	dir := Asc
	if d, ok := parseDirection(parts[len(parts)-1]); ok {
		dir = d
		parts = parts[:len(parts)-1]
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: sort %q names no field", ErrInvalid, raw)
		}
	}

	orders := make([]Order, 0, len(parts))
	for _, field := range parts {
		if !r.sortable[field] {
			return nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalid, field)
		}
		orders = append(orders, Order{Field: field, Direction: dir})
	}
	return orders, nil
}

func parseDirection(s string) (Direction, bool) {
	switch strings.ToLower(s) {
	case "asc":
		return Asc, true
	case "desc":
		return Desc, true
	default:
		return "", false
	}
}
