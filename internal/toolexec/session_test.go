package toolexec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsaliak/goclaw-core/internal/errs"
)

func TestManageScratchpadRequiresBoundSession(t *testing.T) {
	e := newStoreBackedExecutor(t)
	_, err := e.manageScratchpad(json.RawMessage(`{"action":"read"}`), nil)
	assert.True(t, errs.Is(err, errs.FailedPrecondition))
}

func TestManageScratchpadUpdateThenRead(t *testing.T) {
	e := newStoreBackedExecutor(t)
	e.BindSession("sess-1")

	_, err := e.manageScratchpad(json.RawMessage(`{"action":"update","content":"plan: ship it"}`), nil)
	require.NoError(t, err)

	out, err := e.manageScratchpad(json.RawMessage(`{"action":"read"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "plan: ship it", out)
}

func TestManageScratchpadReadEmptyReportsPlaceholder(t *testing.T) {
	e := newStoreBackedExecutor(t)
	e.BindSession("sess-1")

	out, err := e.manageScratchpad(json.RawMessage(`{"action":"read"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "(scratchpad is empty)", out)
}

func TestManageScratchpadUpdateRequiresContent(t *testing.T) {
	e := newStoreBackedExecutor(t)
	e.BindSession("sess-1")

	_, err := e.manageScratchpad(json.RawMessage(`{"action":"update"}`), nil)
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestUseSkillActivateAndDeactivate(t *testing.T) {
	e := newStoreBackedExecutor(t)
	e.BindSession("sess-1")

	skills, err := e.db.GetSkills()
	require.NoError(t, err)
	require.NotEmpty(t, skills)
	name := skills[0].Name

	out, err := e.useSkill(json.RawMessage(`{"name":"`+name+`","action":"activate"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "activated")

	active, err := e.db.GetActiveSkills("sess-1")
	require.NoError(t, err)
	assert.Contains(t, active, name)

	out, err = e.useSkill(json.RawMessage(`{"name":"`+name+`","action":"deactivate"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "deactivated")

	active, err = e.db.GetActiveSkills("sess-1")
	require.NoError(t, err)
	assert.NotContains(t, active, name)
}

func TestUseSkillUnknownNameFails(t *testing.T) {
	e := newStoreBackedExecutor(t)
	e.BindSession("sess-1")

	_, err := e.useSkill(json.RawMessage(`{"name":"does-not-exist","action":"activate"}`), nil)
	assert.Error(t, err)
}
