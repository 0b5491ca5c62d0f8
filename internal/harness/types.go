package harness

import (
	"github.com/roach88/notionsync/internal/engine"
	"github.com/roach88/notionsync/internal/testutil"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and invariant holds.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Summary is the engine's summary of the run. Never nil after Run.
	Summary *engine.Summary `json:"-"`

	// SyncErr is the fatal error the run returned, if any.
	SyncErr error `json:"-"`

	// Dump is the store dump after the run.
	Dump string `json:"dump"`

	// Remote is the fake the run synced from, for call assertions.
	Remote *testutil.FakeRemote `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
