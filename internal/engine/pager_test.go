package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notionsync/internal/notion"
)

// scriptedPages serves pages keyed by cursor and can fail once per cursor.
type scriptedPages struct {
	pages   map[string]notion.ResultPage[string]
	failOn  map[string]bool
	cursors []string
}

func (s *scriptedPages) fetch(_ context.Context, cursor string) (notion.ResultPage[string], error) {
	s.cursors = append(s.cursors, cursor)
	if s.failOn[cursor] {
		s.failOn[cursor] = false
		return notion.ResultPage[string]{}, errors.New("boom")
	}
	return s.pages[cursor], nil
}

func TestPager_WalksCursors(t *testing.T) {
	s := &scriptedPages{pages: map[string]notion.ResultPage[string]{
		"":   {Results: []string{"a", "b"}, NextCursor: "c1"},
		"c1": {Results: []string{"c", "d"}, NextCursor: "c2"},
		"c2": {Results: []string{"e"}},
	}}
	p := newPager(s.fetch)
	ctx := context.Background()

	var items []string
	var starts []int
	for !p.Done() {
		page, start, err := p.Next(ctx)
		require.NoError(t, err)
		items = append(items, page...)
		starts = append(starts, start)
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, items)
	assert.Equal(t, []int{0, 2, 4}, starts)
	assert.Equal(t, []string{"", "c1", "c2"}, s.cursors)
	assert.Equal(t, 5, p.Fetched())
}

func TestPager_FailureDoesNotAdvance(t *testing.T) {
	s := &scriptedPages{
		pages: map[string]notion.ResultPage[string]{
			"":   {Results: []string{"a"}, NextCursor: "c1"},
			"c1": {Results: []string{"b"}},
		},
		failOn: map[string]bool{"c1": true},
	}
	p := newPager(s.fetch)
	ctx := context.Background()

	_, _, err := p.Next(ctx)
	require.NoError(t, err)

	_, start, err := p.Next(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, start)
	assert.False(t, p.Done())

	page, start, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, page)
	assert.Equal(t, 1, start)
	assert.True(t, p.Done())
	assert.Equal(t, []string{"", "c1", "c1"}, s.cursors)
}

func TestPager_EmptyListing(t *testing.T) {
	s := &scriptedPages{pages: map[string]notion.ResultPage[string]{"": {}}}
	p := newPager(s.fetch)

	page, _, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.True(t, p.Done())

	page, _, err = p.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Len(t, s.cursors, 1, "no fetch after the final page")
}
