package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/notionsync/internal/engine"
	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/store"
	"github.com/roach88/notionsync/internal/testutil"
)

// Scenario defines one sync run and its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Comments is the comment scope: pages (default), blocks or none.
	Comments string `yaml:"comments,omitempty"`

	// Concurrency is the number of workers; 0 means the engine default.
	Concurrency int `yaml:"concurrency,omitempty"`

	// MaxAttempts bounds retries of transient faults; 0 means the engine
	// default.
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// Fixture is the remote tree.
	Fixture testutil.Fixture `yaml:"fixture"`

	// Faults make remote operations fail.
	Faults []FaultSpec `yaml:"faults,omitempty"`

	// Expect is checked against the run's summary and store.
	Expect Expectation `yaml:"expect"`
}

// FaultSpec injects an error into one remote operation on one id.
type FaultSpec struct {
	// Op is a fake remote operation: fetch_container, list_children,
	// query_database_rows or list_comments.
	Op string `yaml:"op"`

	// ID is the container the operation is called for.
	ID string `yaml:"id"`

	// Error names the injected error.
	Error string `yaml:"error"`

	// RetryAfter is the server hint carried by rate_limited.
	RetryAfter time.Duration `yaml:"retry_after,omitempty"`

	// After is the number of calls that succeed before the fault fires.
	After int `yaml:"after,omitempty"`

	// Times is how often the fault fires; 0 means every call.
	Times int `yaml:"times,omitempty"`
}

// Fault error names.
const (
	FaultNotFound    = "not_found"
	FaultRateLimited = "rate_limited"
	FaultServerError = "server_error"
	FaultStructural  = "structural"
)

// Expectation is the expected outcome of a scenario. Nil and empty fields
// are not checked.
type Expectation struct {
	// Status is the sync_runs status: completed, completed_with_failures,
	// failed or canceled.
	Status string `yaml:"status,omitempty"`

	// Error is the code of the fatal *engine.SyncError, if the run aborts.
	Error string `yaml:"error,omitempty"`

	// Counts is the number of entities written per kind.
	Counts map[string]int `yaml:"counts,omitempty"`

	// Visited is the number of containers expanded.
	Visited *int `yaml:"visited,omitempty"`

	// Duplicates is the number of repeated entities.
	Duplicates *int `yaml:"duplicates,omitempty"`

	// Failures lists the expected soft failures, in any order.
	Failures []FailureSpec `yaml:"failures,omitempty"`

	// Present and Absent list ids that must or must not be in the store.
	Present []string `yaml:"present,omitempty"`
	Absent  []string `yaml:"absent,omitempty"`

	// Calls bounds how often a fake operation was called for an id.
	Calls []CallSpec `yaml:"calls,omitempty"`
}

// FailureSpec identifies a soft failure.
type FailureSpec struct {
	ID string `yaml:"id"`
	Op string `yaml:"op"`
}

// CallSpec expects op to have been called Count times for ID.
type CallSpec struct {
	Op    string `yaml:"op"`
	ID    string `yaml:"id"`
	Count int    `yaml:"count"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Comments != "" {
		if _, err := engine.ParseCommentScope(s.Comments); err != nil {
			return err
		}
	}
	if s.Concurrency < 0 {
		return fmt.Errorf("concurrency must be non-negative")
	}
	if s.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be non-negative")
	}

	if err := s.Fixture.Validate(); err != nil {
		return fmt.Errorf("fixture: %w", err)
	}

	for i, f := range s.Faults {
		if err := validateFault(i, f); err != nil {
			return err
		}
	}
	return validateExpectation(&s.Expect)
}

func validateFault(index int, f FaultSpec) error {
	if !isOp(f.Op) {
		return fmt.Errorf("faults[%d]: unknown op %q", index, f.Op)
	}
	if f.ID == "" {
		return fmt.Errorf("faults[%d]: id is required", index)
	}
	switch f.Error {
	case FaultNotFound, FaultRateLimited, FaultServerError, FaultStructural:
	default:
		return fmt.Errorf("faults[%d]: unknown error %q", index, f.Error)
	}
	if f.After < 0 || f.Times < 0 {
		return fmt.Errorf("faults[%d]: after and times must be non-negative", index)
	}
	return nil
}

func validateExpectation(e *Expectation) error {
	switch e.Status {
	case "", store.RunCompleted, store.RunCompletedWithFailures, store.RunFailed, store.RunCanceled:
	default:
		return fmt.Errorf("expect: unknown status %q", e.Status)
	}
	for kind := range e.Counts {
		if !isKind(kind) {
			return fmt.Errorf("expect.counts: unknown kind %q", kind)
		}
	}
	for i, f := range e.Failures {
		if f.ID == "" || !isOp(f.Op) {
			return fmt.Errorf("expect.failures[%d]: id and a known op are required", i)
		}
	}
	for i, c := range e.Calls {
		if c.ID == "" || !isOp(c.Op) {
			return fmt.Errorf("expect.calls[%d]: id and a known op are required", i)
		}
	}
	return nil
}

func isOp(op string) bool {
	switch op {
	case testutil.OpFetchContainer, testutil.OpListChildren, testutil.OpQueryRows, testutil.OpListComments:
		return true
	}
	return false
}

func isKind(s string) bool {
	for _, k := range notion.Kinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// fault converts a FaultSpec into a testutil.Fault. The kind is only used
// for structural errors.
func (f FaultSpec) fault(kind notion.Kind) testutil.Fault {
	var err error
	switch f.Error {
	case FaultNotFound:
		err = testutil.NotFound(f.ID)
	case FaultRateLimited:
		err = testutil.RateLimited(f.RetryAfter)
	case FaultServerError:
		err = testutil.ServerError()
	case FaultStructural:
		err = testutil.Structural(kind, f.ID, "results")
	}
	return testutil.Fault{Err: err, After: f.After, Times: f.Times}
}
