package harness

import (
	"context"
	"fmt"

	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
	"github.com/roach88/notionsync/internal/testutil"
)

// CheckInvariants verifies the properties every run must satisfy, whatever
// the scenario expects, and records violations on the result:
//
//   - the summary's counts equal the rows in the store
//   - every stored record's parent is stored, except the root's
//   - archived containers are never listed
//   - re-syncing an unchanged remote rewrites identical rows
//
// The re-sync check only runs for fault-free scenarios that completed:
// consumed faults would make the second run differ.
func CheckInvariants(ctx context.Context, h *Harness, result *Result) error {
	if err := checkCounts(ctx, h.store, result); err != nil {
		return err
	}
	if err := checkParents(ctx, h, result); err != nil {
		return err
	}
	checkInactive(h, result)

	if len(h.scenario.Faults) == 0 && result.SyncErr == nil {
		return checkResync(ctx, h, result)
	}
	return nil
}

func checkCounts(ctx context.Context, st *store.Store, result *Result) error {
	rows, err := st.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}
	for _, kind := range notion.Kinds {
		if got, want := result.Summary.Counts[kind], rows[kind]; got != want {
			result.AddError(fmt.Sprintf("invariant violated: summary counts %d %s rows, store holds %d", got, kind, want))
		}
	}
	return nil
}

var parentKinds = map[notion.ParentType]notion.Kind{
	notion.ParentPage:     notion.KindPage,
	notion.ParentDatabase: notion.KindDatabase,
	notion.ParentBlock:    notion.KindBlock,
}

func checkParents(ctx context.Context, h *Harness, result *Result) error {
	rootID := h.scenario.Fixture.RootID()
	for _, kind := range notion.Kinds {
		refs, err := h.store.Parents(ctx, kind)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if ref.ID == rootID {
				continue
			}
			parentKind, ok := parentKinds[ref.Parent.Type]
			if !ok {
				continue
			}
			found, err := h.store.Exists(ctx, parentKind, ref.Parent.ID)
			if err != nil {
				return err
			}
			if !found {
				result.AddError(fmt.Sprintf("invariant violated: %s %s has parent %s %s which is not stored", kind, ref.ID, parentKind, ref.Parent.ID))
			}
		}
	}
	return nil
}

func checkInactive(h *Harness, result *Result) {
	walkNodes(h.scenario.Fixture.Nodes, func(n testutil.Node) {
		if !n.Archived {
			return
		}
		for _, op := range []string{testutil.OpListChildren, testutil.OpQueryRows} {
			if calls := h.remote.Calls(op, n.ID); calls > 0 {
				result.AddError(fmt.Sprintf("invariant violated: archived %s was expanded (%s called %d times)", n.ID, op, calls))
			}
		}
	})
}

func checkResync(ctx context.Context, h *Harness, result *Result) error {
	summary, err := h.sync(ctx)
	if err != nil {
		result.AddError(fmt.Sprintf("invariant violated: re-sync failed: %v", err))
		return nil
	}
	dump, err := h.store.Dump(ctx)
	if err != nil {
		return fmt.Errorf("failed to dump store: %w", err)
	}
	if dump != result.Dump {
		result.AddError("invariant violated: re-sync of an unchanged remote changed the store")
	}
	if summary.Total() != result.Summary.Total() {
		result.AddError(fmt.Sprintf("invariant violated: re-sync wrote %d entities, first run %d", summary.Total(), result.Summary.Total()))
	}
	return nil
}
