package notion

import (
	"context"

	"github.com/jomei/notionapi"
)

// DefaultPageSize is the number of rows requested per database query.
const DefaultPageSize = 100

// Pager walks a Notion database query one page batch at a time.
// It is finite: once the store reports no further cursor, More returns
// false. Reset rewinds it to the first page so the same query can be
// replayed from the start.
type Pager struct {
	svc        Service
	databaseID string
	base       *notionapi.DatabaseQueryRequest

	cursor notionapi.Cursor
	done   bool
}

// NewPager creates a pager over the given database. base carries the
// filter and sort for every request; it may be nil for a full scan.
func NewPager(svc Service, databaseID string, base *notionapi.DatabaseQueryRequest) *Pager {
	return &Pager{svc: svc, databaseID: databaseID, base: base}
}

// More reports whether another call to Next can return rows.
func (p *Pager) More() bool {
	return !p.done
}

// Next fetches the next batch of pages. It returns an empty slice once
// the sequence is exhausted.
func (p *Pager) Next(ctx context.Context) ([]notionapi.Page, error) {
	if p.done {
		return nil, nil
	}

	req := &notionapi.DatabaseQueryRequest{
		PageSize: DefaultPageSize,
	}
	if p.base != nil {
		req.Filter = p.base.Filter
		req.Sorts = p.base.Sorts
		if p.base.PageSize > 0 {
			req.PageSize = p.base.PageSize
		}
	}
	if p.cursor != "" {
		req.StartCursor = p.cursor
	}

	resp, err := p.svc.QueryDatabase(ctx, p.databaseID, req)
	if err != nil {
		return nil, err
	}

	if resp.HasMore {
		p.cursor = resp.NextCursor
	} else {
		p.done = true
	}

	return resp.Results, nil
}

// Reset rewinds the pager to the first page.
func (p *Pager) Reset() {
	p.cursor = ""
	p.done = false
}
