package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
)

func TestSummary_Total(t *testing.T) {
	s := &Summary{Counts: map[notion.Kind]int{
		notion.KindBlock:   7,
		notion.KindPage:    2,
		notion.KindComment: 1,
	}}
	assert.Equal(t, 10, s.Total())
	assert.Equal(t, 0, (&Summary{}).Total())
}

func TestSummary_ErrAndStatus(t *testing.T) {
	clean := &Summary{}
	assert.NoError(t, clean.Err())
	assert.Equal(t, store.RunCompleted, clean.Status())

	a := &SoftFailure{ID: "a", Kind: notion.KindBlock, Op: opListChildren, Attempts: 1, Err: errors.New("gone")}
	b := &SoftFailure{ID: "b", Kind: notion.KindPage, Op: opListComments, Attempts: 5, Err: errors.New("slow")}
	failed := &Summary{Failures: []*SoftFailure{a, b}}

	err := failed.Err()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.ErrorIs(t, err, a)
	assert.Equal(t, store.RunCompletedWithFailures, failed.Status())
}

func TestSummary_SortFailures(t *testing.T) {
	s := &Summary{Failures: []*SoftFailure{
		{ID: "p2", Op: opListChildren},
		{ID: "p1", Op: opListComments},
		{ID: "p1", Op: opListChildren},
	}}
	s.sortFailures()

	var got []string
	for _, f := range s.Failures {
		got = append(got, f.ID+"/"+f.Op)
	}
	assert.Equal(t, []string{"p1/list_children", "p1/list_comments", "p2/list_children"}, got)
}

func TestSummary_Run(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := &Summary{
		RunID:      "run-0001",
		RootID:     "home",
		RootKind:   notion.KindPage,
		Counts:     map[notion.Kind]int{notion.KindBlock: 3, notion.KindPage: 1},
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Failures: []*SoftFailure{
			{ID: "b9", Kind: notion.KindBlock, Op: opListChildren, Attempts: 1, Err: errors.New("forbidden")},
		},
	}

	run := s.run(s.Status(), nil)
	assert.Equal(t, store.Run{
		ID:         "run-0001",
		RootID:     "home",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Status:     store.RunCompletedWithFailures,
		Counts:     map[string]int{"block": 3, "page": 1},
		Failures:   []store.RunFailure{{ID: "b9", Kind: "block", Op: "list_children", Error: "forbidden"}},
	}, run)

	fatal := s.run(store.RunFailed, errors.New("STORE_WRITE: boom"))
	assert.Equal(t, "STORE_WRITE: boom", fatal.Error)
	assert.Equal(t, store.RunFailed, fatal.Status)
}
