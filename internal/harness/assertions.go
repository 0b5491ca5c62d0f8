package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/notionsync/internal/engine"
	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
)

// ExpectationError is a failed expectation.
type ExpectationError struct {
	Field    string // Expectation field, e.g. "counts.block"
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	return fmt.Sprintf("expectation failed: %s\n  Expected: %s\n  Actual: %s", e.Field, e.Expected, e.Actual)
}

func mismatch(field string, expected, actual any) *ExpectationError {
	return &ExpectationError{
		Field:    field,
		Expected: fmt.Sprint(expected),
		Actual:   fmt.Sprint(actual),
	}
}

// checkExpectations compares the run against the scenario's Expect block
// and records every mismatch on the result. It returns an error only when
// the store cannot be read.
func checkExpectations(ctx context.Context, h *Harness, result *Result) error {
	exp := h.scenario.Expect
	var failed []*ExpectationError

	status, err := lastStatus(ctx, h.store)
	if err != nil {
		return err
	}
	if exp.Status != "" && exp.Status != status {
		failed = append(failed, mismatch("status", exp.Status, status))
	}

	code := errorCode(result.SyncErr)
	switch {
	case exp.Error != "" && exp.Error != code:
		failed = append(failed, mismatch("error", exp.Error, describeErr(result.SyncErr)))
	case exp.Error == "" && result.SyncErr != nil && exp.Status != store.RunFailed && exp.Status != store.RunCanceled:
		failed = append(failed, mismatch("error", "no fatal error", result.SyncErr))
	}

	s := result.Summary
	for _, kind := range sortedKeys(exp.Counts) {
		if got := s.Counts[notion.Kind(kind)]; got != exp.Counts[kind] {
			failed = append(failed, mismatch("counts."+kind, exp.Counts[kind], got))
		}
	}
	if exp.Visited != nil && *exp.Visited != s.Visited {
		failed = append(failed, mismatch("visited", *exp.Visited, s.Visited))
	}
	if exp.Duplicates != nil && *exp.Duplicates != s.Duplicates {
		failed = append(failed, mismatch("duplicates", *exp.Duplicates, s.Duplicates))
	}

	if len(exp.Failures) > 0 {
		want := make([]string, 0, len(exp.Failures))
		for _, f := range exp.Failures {
			want = append(want, f.ID+" "+f.Op)
		}
		got := make([]string, 0, len(s.Failures))
		for _, f := range s.Failures {
			got = append(got, f.ID+" "+f.Op)
		}
		sort.Strings(want)
		sort.Strings(got)
		if strings.Join(want, ", ") != strings.Join(got, ", ") {
			failed = append(failed, mismatch("failures", want, got))
		}
	}

	for _, id := range exp.Present {
		ok, err := stored(ctx, h.store, id)
		if err != nil {
			return err
		}
		if !ok {
			failed = append(failed, mismatch("present", id+" in store", "missing"))
		}
	}
	for _, id := range exp.Absent {
		ok, err := stored(ctx, h.store, id)
		if err != nil {
			return err
		}
		if ok {
			failed = append(failed, mismatch("absent", id+" not in store", "stored"))
		}
	}

	for _, c := range exp.Calls {
		if got := h.remote.Calls(c.Op, c.ID); got != c.Count {
			failed = append(failed, mismatch("calls."+c.Op+"."+c.ID, c.Count, got))
		}
	}

	for _, e := range failed {
		result.AddError(e.Error())
	}
	return nil
}

// lastStatus returns the status recorded for the most recent run.
func lastStatus(ctx context.Context, st *store.Store) (string, error) {
	runs, err := st.LastRuns(ctx, 1)
	if err != nil {
		return "", fmt.Errorf("failed to read runs: %w", err)
	}
	if len(runs) == 0 {
		return "", nil
	}
	return runs[0].Status, nil
}

func errorCode(err error) string {
	var se *engine.SyncError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return ""
}

func describeErr(err error) string {
	if err == nil {
		return "no fatal error"
	}
	if code := errorCode(err); code != "" {
		return code + ": " + err.Error()
	}
	return err.Error()
}

// stored reports whether any table holds id.
func stored(ctx context.Context, st *store.Store, id string) (bool, error) {
	for _, kind := range notion.Kinds {
		ok, err := st.Exists(ctx, kind, id)
		if err != nil {
			return false, fmt.Errorf("failed to look up %s %s: %w", kind, id, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
