package toolexec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsaliak/goclaw-core/internal/cancel"
)

func TestExecuteBashCapturesStdoutAndExitCode(t *testing.T) {
	requireBinary(t, "bash")
	e, _ := newTestExecutor(t)

	out, err := e.executeBash(json.RawMessage(`{"command":"echo hello"}`), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "STDOUT:")
}

func TestExecuteBashCapturesStderrAndNonZeroExit(t *testing.T) {
	requireBinary(t, "bash")
	e, _ := newTestExecutor(t)

	_, err := e.executeBash(json.RawMessage(`{"command":"echo oops 1>&2; exit 3"}`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Command failed with status 3")
	assert.Contains(t, err.Error(), "### STDERR")
	assert.Contains(t, err.Error(), "oops")
}

func TestExecuteBashTimesOut(t *testing.T) {
	requireBinary(t, "bash")
	e, root := newTestExecutor(t)
	e.workspaceRoot = root
	e.execTimeout = 1

	_, err := e.executeBash(json.RawMessage(`{"command":"sleep 5"}`), nil)
	assert.Error(t, err)
}

func TestExecuteBashRespectsCancellation(t *testing.T) {
	requireBinary(t, "bash")
	e, _ := newTestExecutor(t)
	e.execTimeout = 30

	c := cancel.New()
	go func() {
		time.Sleep(100 * time.Millisecond)
		c.Cancel()
	}()

	_, err := e.executeBash(json.RawMessage(`{"command":"sleep 5"}`), c)
	assert.Error(t, err)
}
