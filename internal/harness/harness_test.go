package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notionsync/internal/engine"
	"github.com/roach88/notionsync/internal/notion"
	"github.com/roach88/notionsync/internal/testutil"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func intPtr(n int) *int { return &n }

// smallScenario is a page with one paragraph and one toggle holding a
// paragraph.
func smallScenario(name string) *Scenario {
	return &Scenario{
		Name: name,
		Fixture: testutil.Fixture{
			Root: "home",
			Nodes: []testutil.Node{{
				ID:   "home",
				Kind: "page",
				Children: []testutil.Node{
					{ID: "intro"},
					{ID: "toggle", Type: "toggle", Children: []testutil.Node{{ID: "nested"}}},
				},
			}},
		},
	}
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"nested_tree", "soft_failures"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "nested_tree")

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, first.Dump, second.Dump)
	assert.Equal(t, "run-0001", first.Summary.RunID)
	assert.Equal(t, "run-0001", second.Summary.RunID)
}

func TestRun_SummaryAndRemote(t *testing.T) {
	result, err := Run(context.Background(), smallScenario("small"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))

	require.NotNil(t, result.Summary)
	assert.Nil(t, result.SyncErr)
	assert.Equal(t, "home", result.Summary.RootID)
	assert.Equal(t, notion.KindPage, result.Summary.RootKind)
	assert.Equal(t, 3, result.Summary.Counts[notion.KindBlock])
	assert.Equal(t, 2, result.Summary.Visited)
	assert.Equal(t, 1, result.Remote.Calls(testutil.OpListChildren, "toggle"))
	assert.Contains(t, result.Dump, "nested|block_id|toggle|")
}

func TestRun_FatalErrorReported(t *testing.T) {
	s := smallScenario("fatal")
	s.Faults = []FaultSpec{{Op: testutil.OpFetchContainer, ID: "home", Error: FaultServerError}}
	s.MaxAttempts = 2

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, engine.IsRootUnavailable(result.SyncErr))
	assert.Equal(t, 2, result.Remote.Calls(testutil.OpFetchContainer, "home"))
	// A fatal error without a matching expectation fails the scenario.
	assert.False(t, result.Pass)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "expectation failed: error")
}

func TestRun_ExpectationMismatches(t *testing.T) {
	s := smallScenario("mismatch")
	s.Expect = Expectation{
		Status:     "completed_with_failures",
		Counts:     map[string]int{"block": 2, "page": 1},
		Visited:    intPtr(3),
		Duplicates: intPtr(1),
		Failures:   []FailureSpec{{ID: "toggle", Op: "list_children"}},
		Present:    []string{"missing"},
		Absent:     []string{"intro"},
		Calls:      []CallSpec{{Op: "list_children", ID: "home", Count: 2}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	for _, field := range []string{
		"status", "counts.block", "visited", "duplicates", "failures",
		"present", "absent", "calls.list_children.home",
	} {
		assert.Contains(t, joined, "expectation failed: "+field+"\n")
	}
	assert.NotContains(t, joined, "counts.page")
	assert.NotContains(t, joined, "invariant violated")
}

func TestRun_ExpectedErrorCode(t *testing.T) {
	s := smallScenario("structural")
	s.Faults = []FaultSpec{{Op: testutil.OpListChildren, ID: "toggle", Error: FaultStructural}}
	s.Expect = Expectation{Status: "failed", Error: "ROOT_UNAVAILABLE"}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, engine.IsStructuralError(result.SyncErr))
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: ROOT_UNAVAILABLE")
	assert.Contains(t, result.Errors[0], "Actual: STRUCTURAL: ")
}

func TestExpectationError_Format(t *testing.T) {
	err := mismatch("visited", 3, 2)
	assert.Equal(t, "expectation failed: visited\n  Expected: 3\n  Actual: 2", err.Error())
}
