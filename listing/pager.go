package listing

import "halisaha-bot/types"

const DefaultLimit = 10

// Pager is the page state of a server-paginated view. Changing the page only
// changes what to ask the server for next; nothing is sliced locally.
type Pager struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
	Filters    map[string]string
}

func NewPager(limit int) *Pager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pager{Page: 1, Limit: limit, Filters: map[string]string{}}
}

func (p *Pager) HasPrev() bool {
	return p.Page > 1
}

func (p *Pager) HasNext() bool {
	return p.Page < p.TotalPages
}

// Next moves forward and reports whether it did.
func (p *Pager) Next() bool {
	if !p.HasNext() {
		return false
	}
	p.Page++
	return true
}

func (p *Pager) Prev() bool {
	if !p.HasPrev() {
		return false
	}
	p.Page--
	return true
}

// SetFilter changes one filter and goes back to the first page.
func (p *Pager) SetFilter(key, value string) {
	if p.Filters == nil {
		p.Filters = map[string]string{}
	}
	if value == "" {
		delete(p.Filters, key)
	} else {
		p.Filters[key] = value
	}
	p.Page = 1
}

// Apply records what the server reported for the last fetch.
func (p *Pager) Apply(pg types.Pagination) {
	p.Total = pg.Total
	p.TotalPages = pg.TotalPages
	if pg.Page > 0 {
		p.Page = pg.Page
	}
}
