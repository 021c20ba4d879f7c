package toolexec

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

func newTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	root := t.TempDir()
	return New(nil, root, 30), root
}

func TestReadFileWholeFile(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\nthree"), 0644))

	out, err := e.readFile(json.RawMessage(`{"path":"a.txt"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "### FILE: a.txt | TOTAL_LINES: 3 | RANGE: 1-3")
	assert.Contains(t, out, "1: one")
	assert.Contains(t, out, "2: two")
	assert.Contains(t, out, "3: three")
}

func TestReadFileWithoutLineNumbers(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\nthree"), 0644))

	out, err := e.readFile(json.RawMessage(`{"path":"a.txt","add_line_numbers":false}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "one\ntwo\nthree")
	assert.NotContains(t, out, "1: one")
}

func TestReadFileAppendsTruncationHint(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\nthree\nfour"), 0644))

	out, err := e.readFile(json.RawMessage(`{"path":"a.txt","end_line":2}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "### FILE: a.txt | TOTAL_LINES: 4 | RANGE: 1-2")
	assert.Contains(t, out, "... [Truncated. Use 'read_file' with start_line=3 to see more] ...")
}

func TestReadFileLineRangeWithNumbers(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\nthree\nfour"), 0644))

	out, err := e.readFile(json.RawMessage(`{"path":"a.txt","start_line":2,"end_line":3,"add_line_numbers":true}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "2: two")
	assert.Contains(t, out, "3: three")
	assert.NotContains(t, out, "1: one")
}

func TestReadFileRejectsInvertedRange(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo"), 0644))

	_, err := e.readFile(json.RawMessage(`{"path":"a.txt","start_line":2,"end_line":1}`), nil)
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestReadFileMissingPath(t *testing.T) {
	e, _ := newTestExecutor(t)
	_, err := e.readFile(json.RawMessage(`{}`), nil)
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestWriteFileCreatesAndReportsPreview(t *testing.T) {
	e, root := newTestExecutor(t)
	out, err := e.writeFile(json.RawMessage(`{"path":"new.txt","content":"hello world"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 11 bytes to new.txt")

	data, err := os.ReadFile(filepath.Join(root, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestWriteFileTruncatesPreviewToThreeLines(t *testing.T) {
	e, _ := newTestExecutor(t)
	out, err := e.writeFile(json.RawMessage(`{"path":"new.txt","content":"one\ntwo\nthree\nfour"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "one\ntwo\nthree\n...")
	assert.NotContains(t, out, "four")
}

func TestWriteFileBlocksEscapingSandbox(t *testing.T) {
	e, _ := newTestExecutor(t)
	_, err := e.writeFile(json.RawMessage(`{"path":"../escape.txt","content":"x"}`), nil)
	assert.True(t, errs.Is(err, errs.PermissionDenied))
}

func TestApplyPatchSingleUniqueMatch(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("func Foo() int {\n\treturn 1\n}\n"), 0644))

	args := json.RawMessage(`{"path":"a.go","patches":[{"find":"return 1","replace":"return 2"}]}`)
	out, err := e.applyPatch(args, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 1 patch(es)")

	data, err := os.ReadFile(filepath.Join(root, "a.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "return 2")
}

func TestApplyPatchFailsWhenFindTextMissing(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0644))

	args := json.RawMessage(`{"path":"a.go","patches":[{"find":"nope","replace":"x"}]}`)
	_, err := e.applyPatch(args, nil)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestApplyPatchFailsWhenFindTextAmbiguous(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("x\nx\n"), 0644))

	args := json.RawMessage(`{"path":"a.go","patches":[{"find":"x","replace":"y"}]}`)
	_, err := e.applyPatch(args, nil)
	assert.True(t, errs.Is(err, errs.FailedPrecondition))
}

func TestApplyPatchRejectsEmptyFind(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("x\n"), 0644))

	args := json.RawMessage(`{"path":"a.go","patches":[{"find":"","replace":"y"}]}`)
	_, err := e.applyPatch(args, nil)
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestApplyPatchRejectsEmptyPatchList(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("x\n"), 0644))

	_, err := e.applyPatch(json.RawMessage(`{"path":"a.go","patches":[]}`), nil)
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestApplyPatchAppliesSequentially(t *testing.T) {
	e, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("step0\n"), 0644))

	args := json.RawMessage(`{"path":"a.go","patches":[{"find":"step0","replace":"step1"},{"find":"step1","replace":"step2"}]}`)
	_, err := e.applyPatch(args, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "a.go"))
	require.NoError(t, err)
	assert.Equal(t, "step2\n", string(data))
}
