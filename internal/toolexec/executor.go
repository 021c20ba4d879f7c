// Package toolexec implements C5: the tool catalogue's behavior, wrapping
// every result (success or error) in the "### TOOL_RESULT" envelope the LLM
// reads, grounded on original_source/core/tool_executor.cpp and the
// teacher's internal/tools/*.go Tool-per-file layout.
package toolexec

import (
	"encoding/json"
	"fmt"

	"github.com/hsaliak/goclaw-core/internal/cancel"
	"github.com/hsaliak/goclaw-core/internal/errs"
	. "github.com/hsaliak/goclaw-core/internal/logging"
	"github.com/hsaliak/goclaw-core/internal/sandbox"
	"github.com/hsaliak/goclaw-core/internal/store"
)

// handler is one tool's implementation. Each returns the tool's own text
// body; the Executor applies the TOOL_RESULT wrapper around it.
type handler func(e *Executor, argsJSON json.RawMessage, cancellation *cancel.Request) (string, error)

// Executor dispatches named tool calls to their handlers. It carries the
// session binding the Interaction Loop sets before each dispatch.
type Executor struct {
	db            *store.Store
	workspaceRoot string
	execTimeout   int // seconds

	sessionID string

	dispatch map[string]handler
}

// New constructs an Executor bound to db and sandboxed to workspaceRoot.
func New(db *store.Store, workspaceRoot string, execTimeoutSeconds int) *Executor {
	e := &Executor{db: db, workspaceRoot: workspaceRoot, execTimeout: execTimeoutSeconds}
	e.dispatch = map[string]handler{
		"read_file":               (*Executor).readFile,
		"write_file":              (*Executor).writeFile,
		"apply_patch":             (*Executor).applyPatch,
		"execute_bash":            (*Executor).executeBash,
		"grep_tool":               (*Executor).grepTool,
		"git_grep_tool":           (*Executor).gitGrepTool,
		"query_db":                (*Executor).queryDB,
		"save_memo":               (*Executor).saveMemo,
		"retrieve_memos":          (*Executor).retrieveMemos,
		"list_directory":          (*Executor).listDirectory,
		"manage_scratchpad":       (*Executor).manageScratchpad,
		"describe_db":             (*Executor).describeDB,
		"use_skill":               (*Executor).useSkill,
		"query_json":              (*Executor).queryJSON,
		"git_branch_staging":      (*Executor).gitBranchStaging,
		"git_commit_patch":        (*Executor).gitCommitPatch,
		"git_format_patch_series": (*Executor).gitFormatPatchSeries,
		"git_verify_series":       (*Executor).gitVerifySeries,
		"git_reroll_patch":        (*Executor).gitRerollPatch,
	}
	return e
}

// BindSession sets the session id used by session-dependent tools
// (manage_scratchpad, use_skill) for subsequent Execute calls.
func (e *Executor) BindSession(sessionID string) {
	e.sessionID = sessionID
}

// Execute runs one named tool call and returns the full
// "### TOOL_RESULT: <name>\n<body>\n\n---" wrapper, per spec §4.5/§6.4. It
// never itself returns a non-nil error for a tool-level failure — the
// failure is rendered into the wrapper body so the LLM can read and
// recover; the one exception is a cancellation observed before dispatch.
func (e *Executor) Execute(name string, argsJSON json.RawMessage, cancellation *cancel.Request) (string, error) {
	if cancellation != nil && cancellation.IsCancelled() {
		return "", errs.New(errs.Cancelled, "tool execution cancelled")
	}

	h, ok := e.dispatch[name]
	if !ok {
		return wrap(name, fmt.Sprintf("Error: %s: unknown tool %q", errs.Unimplemented, name)), nil
	}

	body, err := h(e, argsJSON, cancellation)
	if err != nil {
		kind := errs.KindOf(err)
		L_warn("toolexec: tool failed", "tool", name, "kind", kind, "error", err)
		var msg string
		if ae, ok := err.(*errs.Error); ok {
			msg = ae.Message
		} else {
			msg = err.Error()
		}
		return wrap(name, fmt.Sprintf("Error: %s: %s", kind, msg)), nil
	}

	if err := e.db.IncrementToolCallCount(name); err != nil {
		L_warn("toolexec: failed to increment call count", "tool", name, "error", err)
	}

	return wrap(name, body), nil
}

func wrap(name, body string) string {
	return fmt.Sprintf("### TOOL_RESULT: %s\n%s\n\n---", name, body)
}

// requireSession fails with failed_precondition if no session is bound, per
// spec §4.5 "Session binding".
func (e *Executor) requireSession() error {
	if e.sessionID == "" {
		return errs.New(errs.FailedPrecondition, "no active session")
	}
	return nil
}

// resolvedPath runs sandbox validation for a tool-supplied path argument.
func (e *Executor) resolvedPath(path string) (string, error) {
	return sandbox.ValidatePath(path, e.workspaceRoot, e.workspaceRoot)
}
