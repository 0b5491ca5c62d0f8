package engine

import (
	"context"

	"github.com/roach88/notionsync/internal/notion"
)

// pageFunc fetches the page of a listing that starts at cursor. The empty
// cursor requests the first page.
type pageFunc[T any] func(ctx context.Context, cursor string) (notion.ResultPage[T], error)

// Pager walks a paginated listing one page at a time.
//
// The cursor only advances after a page is fetched successfully, so a
// failed Next can be retried and re-requests the same page. Pages are
// fetched strictly in cursor order.
type Pager[T any] struct {
	fetch  pageFunc[T]
	cursor string
	offset int
	done   bool
}

func newPager[T any](fetch pageFunc[T]) *Pager[T] {
	return &Pager[T]{fetch: fetch}
}

// Next fetches the next page. It returns the page's items and the position
// of the first item within the whole listing.
func (p *Pager[T]) Next(ctx context.Context) ([]T, int, error) {
	if p.done {
		return nil, p.offset, nil
	}
	page, err := p.fetch(ctx, p.cursor)
	if err != nil {
		return nil, p.offset, err
	}

	start := p.offset
	p.offset += len(page.Results)
	p.cursor = page.NextCursor
	p.done = page.Last()
	return page.Results, start, nil
}

// Done reports whether the final page has been fetched.
func (p *Pager[T]) Done() bool {
	return p.done
}

// Fetched returns the number of items fetched so far.
func (p *Pager[T]) Fetched() int {
	return p.offset
}
