package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notionsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_Valid(t *testing.T) {
	env := map[string]string{"NOTION_TOKEN": "secret-token"}
	res := execute(t, nil, env, "--db", "wiki.db", "validate", rootHex)
	require.NoError(t, res.Err)

	assert.Contains(t, res.Stdout, "✓ Configuration valid")
	assert.Contains(t, res.Stdout, "token:       set")
	assert.Contains(t, res.Stdout, "database:    wiki.db")
	assert.Contains(t, res.Stdout, "root:        "+rootID)
	assert.NotContains(t, res.Stdout, "secret-token")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	res := execute(t, nil, nil, "validate")
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))

	assert.Contains(t, res.Stdout, "✗ Configuration invalid")
	assert.Contains(t, res.Stdout, "token is required")
	assert.Contains(t, res.Stdout, "root page is required")
	assert.Contains(t, res.Stdout, "Error [CONFIG]: validation failed with 2 error(s)")
}

func TestValidate_SchemaViolation(t *testing.T) {
	path := writeConfigFile(t, "concurrency: 0\ncolour: blue\n")
	res := execute(t, nil, map[string]string{"NOTION_TOKEN": "x"}, "--config", path, "validate", rootHex)
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
	assert.Contains(t, res.Stdout, "✗ Configuration invalid")
	assert.NotContains(t, res.Stdout, "token:")
}

func TestValidate_InvalidRoot(t *testing.T) {
	res := execute(t, nil, map[string]string{"NOTION_TOKEN": "x"}, "validate", "not-an-id")
	require.Error(t, res.Err)
	assert.Contains(t, res.Stdout, `invalid root "not-an-id"`)
}

func TestValidate_JSON(t *testing.T) {
	path := writeConfigFile(t, "comments: blocks\nsub_fetches: 2\napi:\n  page_size: 50\n")
	env := map[string]string{"NOTION_TOKEN": "x", "NOTION_ROOT_PAGE": rootHex}
	res := execute(t, nil, env, "--format", "json", "--config", path, "validate")
	require.NoError(t, res.Err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Config)
	assert.True(t, resp.Data.Config.TokenSet)
	assert.Equal(t, "blocks", resp.Data.Config.Comments)
	assert.Equal(t, 50, resp.Data.Config.PageSize)
	assert.Equal(t, 2, resp.Data.Config.SubFetches)
	assert.Equal(t, rootID, resp.Data.Config.Root)
}
