package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
	. "github.com/hsaliak/goclaw-core/internal/logging"
)

// executeBash runs command in a bash subshell rooted at the workspace,
// capturing stdout and stderr separately and bounding runtime to the
// Executor's configured timeout. The agent's cancellation token is wired
// to the command's context so an interactive Cancel() kills the process
// promptly instead of waiting out the timeout. Grounded on the teacher's
// internal/tools/exec.go ExecTool, generalized from its fixed timeout to
// the configured execTimeout and wired to *cancel.Request.
func (e *Executor) executeBash(argsJSON json.RawMessage, cancellation *cancel.Request) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	command, err := requireString(args, "command")
	if err != nil {
		return "", err
	}

	timeout := time.Duration(e.execTimeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), timeout)
	defer cancelFn()

	if cancellation != nil {
		cancellation.RegisterCallback(cancelFn)
	}

	preview := strings.ReplaceAll(command, "\n", " ")
	if len(preview) > 30 {
		preview = preview[:30] + "..."
	}
	L_info("toolexec: executing shell command", "preview", preview)

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = e.workspaceRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return "", errs.Newf(errs.ResourceExhausted, "command timed out after %s", timeout)
	}
	if cancellation != nil && cancellation.IsCancelled() {
		return "", errs.New(errs.Cancelled, "command cancelled")
	}

	var body strings.Builder
	body.WriteString(stdout.String())
	if stderr.Len() > 0 {
		body.WriteString("\n### STDERR\n")
		body.WriteString(stderr.String())
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return "", errs.Wrap(errs.Internal, fmt.Errorf("run command: %w", runErr))
		}
	}

	if exitCode != 0 {
		return "", errs.Newf(errs.Internal, "Command failed with status %d: %s", exitCode, body.String())
	}

	return body.String(), nil
}

// runCommand runs a command synchronously in dir, returning its combined
// stdout/stderr alongside the command's error, for tools that shell out
// to git as an implementation detail (grep_tool, git_grep_tool, and the
// git-series tools) rather than exposing raw shell execution.
func runCommand(ctx context.Context, dir string, name string, arg ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}
