package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/notionsync/internal/store"
)

func TestStatus_AfterSync(t *testing.T) {
	db := tempDB(t)
	require.NoError(t, execute(t, testTree(), nil, "--db", db, "sync", rootHex).Err)

	res := execute(t, nil, nil, "--db", db, "status")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "rows: 3 blocks, 1 pages, 0 databases, 1 comments")
	assert.Contains(t, res.Stdout, "run-0001")
	assert.Contains(t, res.Stdout, "completed")
	assert.Contains(t, res.Stdout, "5 written")
}

func TestStatus_JSON(t *testing.T) {
	db := tempDB(t)
	require.NoError(t, execute(t, testTree(), nil, "--db", db, "sync", rootHex).Err)

	res := execute(t, nil, nil, "--db", db, "--format", "json", "status", "--limit", "1")
	require.NoError(t, res.Err)

	var resp struct {
		Status string       `json:"status"`
		Data   statusResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Counts["block"])
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, rootID, resp.Data.Runs[0].RootID)
	assert.Equal(t, store.RunCompleted, resp.Data.Runs[0].Status)
}

func TestStatus_MissingDatabase(t *testing.T) {
	res := execute(t, nil, nil, "--db", tempDB(t), "status")
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
	assert.Contains(t, res.Stdout, "database not found")
}

func TestStatus_InvalidLimit(t *testing.T) {
	res := execute(t, nil, nil, "status", "--limit", "0")
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
}
