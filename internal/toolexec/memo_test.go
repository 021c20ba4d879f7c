package toolexec

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsaliak/goclaw-core/internal/errs"
	"github.com/hsaliak/goclaw-core/internal/store"
)

func newStoreBackedExecutor(t *testing.T) *Executor {
	t.Helper()
	db, err := store.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, t.TempDir(), 30)
}

func TestSaveMemoRejectsEmptyTags(t *testing.T) {
	e := newStoreBackedExecutor(t)
	_, err := e.saveMemo(json.RawMessage(`{"content":"note","tags":[]}`), nil)
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestSaveAndRetrieveMemo(t *testing.T) {
	e := newStoreBackedExecutor(t)

	out, err := e.saveMemo(json.RawMessage(`{"content":"remember the port","tags":["infra","ports"]}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved memo #1")

	out, err = e.retrieveMemos(json.RawMessage(`{"tags":["infra"]}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "remember the port")
}

func TestRetrieveMemosNoMatches(t *testing.T) {
	e := newStoreBackedExecutor(t)
	out, err := e.retrieveMemos(json.RawMessage(`{"tags":["nonexistent"]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "(no matching memos)", out)
}
