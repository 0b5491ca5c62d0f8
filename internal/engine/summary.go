package engine

import (
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
)

// Summary is the outcome of a run that reached the end of the frontier.
type Summary struct {
	RunID    string
	RootID   string
	RootKind notion.Kind

	// Counts is the number of entities written per kind.
	Counts map[notion.Kind]int

	// Visited is the number of containers expanded.
	Visited int

	// Duplicates counts entities returned more than once in the run. Only
	// the first occurrence is written: within a run the mirror keeps the
	// first copy seen rather than the last, so every entity is upserted
	// exactly once. Across runs the latest fetch still overwrites.
	Duplicates int

	// Failures lists soft failures, ordered by id then operation.
	Failures []*SoftFailure

	StartedAt  time.Time
	FinishedAt time.Time
}

// Total returns the number of entities written across all kinds.
func (s *Summary) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Err aggregates the soft failures. Returns nil when there are none.
func (s *Summary) Err() error {
	var result *multierror.Error
	for _, f := range s.Failures {
		result = multierror.Append(result, f)
	}
	return result.ErrorOrNil()
}

// Status returns the sync_runs status for a completed run.
func (s *Summary) Status() string {
	if len(s.Failures) > 0 {
		return store.RunCompletedWithFailures
	}
	return store.RunCompleted
}

func (s *Summary) sortFailures() {
	sort.Slice(s.Failures, func(i, j int) bool {
		a, b := s.Failures[i], s.Failures[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Op < b.Op
	})
}

// run converts the summary to its sync_runs row.
func (s *Summary) run(status string, fatal error) store.Run {
	r := store.Run{
		ID:         s.RunID,
		RootID:     s.RootID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Status:     status,
		Counts:     make(map[string]int, len(s.Counts)),
		Failures:   make([]store.RunFailure, 0, len(s.Failures)),
	}
	for kind, n := range s.Counts {
		r.Counts[string(kind)] = n
	}
	for _, f := range s.Failures {
		r.Failures = append(r.Failures, store.RunFailure{
			ID:    f.ID,
			Kind:  string(f.Kind),
			Op:    f.Op,
			Error: f.Err.Error(),
		})
	}
	if fatal != nil {
		r.Error = fatal.Error()
	}
	return r
}
