package toolexec

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

// newGitTestExecutor sets up a throwaway git repository with a single
// committed file on main, configured with a user identity so commits
// succeed without reading global gitconfig.
func newGitTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	requireBinary(t, "git")
	requireBinary(t, "bash")

	e, root := newTestExecutor(t)

	run := func(args ...string) {
		out, err := e.git(testContext(t), args...)
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\n"), 0644))
	run("add", "-A")
	run("commit", "-m", "initial commit")

	return e, root
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	return context.Background()
}

func TestGitBranchStagingCreatesBranchAndPersistsBase(t *testing.T) {
	e, _ := newGitTestExecutor(t)

	out, err := e.gitBranchStaging(json.RawMessage(`{"name":"feature-x"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "goclaw/staging/feature-x")
	assert.Contains(t, out, "main")

	branch, err := e.git(testContext(t), "rev-parse", "--abbrev-ref", "HEAD")
	require.NoError(t, err)
	assert.Contains(t, branch, "goclaw/staging/feature-x")

	base, err := e.resolveBaseBranch(testContext(t), "")
	require.NoError(t, err)
	assert.Equal(t, "main", base)
}

func TestGitCommitPatchRequiresChanges(t *testing.T) {
	e, _ := newGitTestExecutor(t)

	_, err := e.gitCommitPatch(json.RawMessage(`{"summary":"noop","rationale":"nothing changed"}`), nil)
	assert.True(t, errs.Is(err, errs.FailedPrecondition))
}

func TestGitCommitPatchCommitsWorkingTreeChanges(t *testing.T) {
	e, root := newGitTestExecutor(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nline2\n"), 0644))

	out, err := e.gitCommitPatch(json.RawMessage(`{"summary":"add line2","rationale":"needed it"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "add line2")

	log, err := e.git(testContext(t), "log", "-1", "--format=%s")
	require.NoError(t, err)
	assert.Contains(t, log, "add line2")
}

func TestGitFormatPatchSeriesListsCommits(t *testing.T) {
	e, root := newGitTestExecutor(t)

	_, err := e.gitBranchStaging(json.RawMessage(`{"name":"series"}`), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nline2\n"), 0644))
	_, err = e.gitCommitPatch(json.RawMessage(`{"summary":"add line2","rationale":"r"}`), nil)
	require.NoError(t, err)

	out, err := e.gitFormatPatchSeries(json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "### Patch [1/1]: add line2 ###")
}

func TestGitFormatPatchSeriesEmptyWhenNoCommitsAhead(t *testing.T) {
	e, _ := newGitTestExecutor(t)

	_, err := e.gitBranchStaging(json.RawMessage(`{"name":"empty-series"}`), nil)
	require.NoError(t, err)

	out, err := e.gitFormatPatchSeries(json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "no commits ahead of main")
}

func TestGitVerifySeriesReportsPassAndRestoresBranch(t *testing.T) {
	e, root := newGitTestExecutor(t)

	_, err := e.gitBranchStaging(json.RawMessage(`{"name":"verify-series"}`), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nline2\n"), 0644))
	_, err = e.gitCommitPatch(json.RawMessage(`{"summary":"add line2","rationale":"r"}`), nil)
	require.NoError(t, err)

	startBranch, err := e.git(testContext(t), "rev-parse", "--abbrev-ref", "HEAD")
	require.NoError(t, err)

	out, err := e.gitVerifySeries(json.RawMessage(`{"command":"test -f file.txt"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"all_passed":true`)

	endBranch, err := e.git(testContext(t), "rev-parse", "--abbrev-ref", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, startBranch, endBranch)
}

func TestGitVerifySeriesReportsFailure(t *testing.T) {
	e, root := newGitTestExecutor(t)

	_, err := e.gitBranchStaging(json.RawMessage(`{"name":"verify-fail"}`), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nline2\n"), 0644))
	_, err = e.gitCommitPatch(json.RawMessage(`{"summary":"add line2","rationale":"r"}`), nil)
	require.NoError(t, err)

	out, err := e.gitVerifySeries(json.RawMessage(`{"command":"exit 1"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, `"all_passed":false`)
	assert.Contains(t, out, `"status":"failed"`)
}

func TestGitRerollPatchRequiresUncommittedChanges(t *testing.T) {
	e, root := newGitTestExecutor(t)

	_, err := e.gitBranchStaging(json.RawMessage(`{"name":"reroll-series"}`), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nline2\n"), 0644))
	_, err = e.gitCommitPatch(json.RawMessage(`{"summary":"add line2","rationale":"r"}`), nil)
	require.NoError(t, err)

	_, err = e.gitRerollPatch(json.RawMessage(`{"index":0}`), nil)
	assert.True(t, errs.Is(err, errs.FailedPrecondition))
}

func TestGitRerollPatchReplacesCommitDiff(t *testing.T) {
	e, root := newGitTestExecutor(t)

	_, err := e.gitBranchStaging(json.RawMessage(`{"name":"reroll-series-2"}`), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nline2\n"), 0644))
	_, err = e.gitCommitPatch(json.RawMessage(`{"summary":"add line2","rationale":"r"}`), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nline2-rerolled\n"), 0644))

	out, err := e.gitRerollPatch(json.RawMessage(`{"index":0}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Rerolled patch 1/1")

	content, err := os.ReadFile(filepath.Join(root, "file.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "line2-rerolled")
}

func TestGitRerollPatchRejectsOutOfRangeIndex(t *testing.T) {
	e, root := newGitTestExecutor(t)

	_, err := e.gitBranchStaging(json.RawMessage(`{"name":"reroll-series-3"}`), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nline2\n"), 0644))
	_, err = e.gitCommitPatch(json.RawMessage(`{"summary":"add line2","rationale":"r"}`), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("line1\nchanged\n"), 0644))

	_, err = e.gitRerollPatch(json.RawMessage(`{"index":5}`), nil)
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}
