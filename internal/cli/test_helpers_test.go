package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/notionsync/internal/engine"
	"github.com/roach88/notionsync/internal/testutil"
)

// rootID is the dashed form of rootHex, as ParseID returns it.
const (
	rootHex = "0123456789abcdef0123456789abcdef"
	rootID  = "01234567-89ab-cdef-0123-456789abcdef"
)

// testTree returns a remote holding a root page with three blocks and one
// page comment.
func testTree() *testutil.FakeRemote {
	r := testutil.NewFakeRemote()
	r.AddPage(rootID, "")
	r.AddBlock(rootID, "b1", "paragraph")
	r.AddBlock(rootID, "b2", "toggle")
	r.AddBlock("b2", "b2-1", "paragraph")
	r.AddComment(rootID, "c1")
	return r
}

// cliRun is the outcome of one command execution.
type cliRun struct {
	Stdout string
	Stderr string
	Err    error
}

// execute runs the CLI with args against r (nil means no injected remote)
// and the given environment.
func execute(t *testing.T, r engine.Remote, env map[string]string, args ...string) cliRun {
	t.Helper()

	rootOpts := &RootOptions{Getenv: func(k string) string { return env[k] }}
	syncOpts := &SyncOptions{
		Remote: r,
		EngineOptions: []engine.EngineOption{
			engine.WithRunIDGenerator(testutil.NewSequenceGenerator("run")),
			engine.WithClock(testutil.NewStepClock(testutil.FixtureTime, time.Second)),
		},
	}
	cmd := newRootCommand(rootOpts, syncOpts, &StatusOptions{})

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return cliRun{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "mirror.db")
}
